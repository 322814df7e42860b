// Package journal persists a record of every resolved battle turn.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// ErrUnknownBattle is returned when a battle id has no journal entry.
var ErrUnknownBattle = errors.New("unknown battle")

// BattleInfo describes a battle when it starts.
type BattleInfo struct {
	ID        string
	Seed      uint64
	ShipLevel int
	StartedAt time.Time
}

// TurnRecord is what the engine reports after resolving a turn.
type TurnRecord struct {
	BattleID  string
	Turn      uint64
	StartedAt time.Time
	Duration  time.Duration
	// Results is the SimResults payload sent to clients.
	Results []byte
	Ships   []ShipSummary
	Added   []entity.ShipID
	Removed []entity.ShipID
}

// ShipSummary is the per-ship line stored with each turn.
type ShipSummary struct {
	ID      entity.ShipID `json:"id"`
	Name    string        `json:"name"`
	HP      int           `json:"hp"`
	Modules int           `json:"modules"`
	Active  int           `json:"active"`
	Jumping bool          `json:"jumping,omitempty"`
}

// Summarize builds summaries for ships in the given order.
func Summarize(ships []*entity.Ship) []ShipSummary {
	out := make([]ShipSummary, len(ships))
	for i, s := range ships {
		active := 0
		for _, on := range s.ActiveFlags() {
			if on {
				active++
			}
		}
		out[i] = ShipSummary{
			ID:      s.ID,
			Name:    s.Name,
			HP:      s.HP(),
			Modules: len(s.Modules),
			Active:  active,
			Jumping: s.State.Jumping,
		}
	}
	return out
}

// Battle is the stored row for one battle.
type Battle struct {
	ID        string `gorm:"primaryKey;size:36"`
	Seed      uint64
	ShipLevel int
	StartedAt time.Time
	EndedAt   *time.Time
	Turns     uint64
}

// Turn is the stored row for one resolved turn.
type Turn struct {
	ID          uint   `gorm:"primaryKey"`
	BattleID    string `gorm:"size:36;index:idx_battle_turn,unique"`
	Number      uint64 `gorm:"index:idx_battle_turn,unique"`
	StartedAt   time.Time
	DurationMS  int64
	Results     []byte
	ResultsSize int
	Ships       datatypes.JSON
	Added       datatypes.JSON
	Removed     datatypes.JSON
	CreatedAt   time.Time
}

// Journal writes battle history through gorm.
type Journal struct {
	db *gorm.DB
}

// Open connects to dsn. postgres:// URLs and key=value strings go to
// PostgreSQL; anything else is a SQLite path, with "" meaning in memory.
func Open(dsn string) (*Journal, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err == nil {
			err = limitSQLiteConns(db)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return New(db)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// A single connection keeps an in-memory database alive and serializes
// writers.
func limitSQLiteConns(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

// New wraps an open database and migrates the journal tables.
func New(db *gorm.DB) (*Journal, error) {
	if err := db.AutoMigrate(&Battle{}, &Turn{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// StartBattle stores the battle row.
func (j *Journal) StartBattle(ctx context.Context, info BattleInfo) error {
	row := Battle{ID: info.ID, Seed: info.Seed, ShipLevel: info.ShipLevel, StartedAt: info.StartedAt}
	return j.db.WithContext(ctx).Create(&row).Error
}

// RecordTurn stores one turn with its results payload compressed.
func (j *Journal) RecordTurn(ctx context.Context, rec TurnRecord) error {
	ships, err := toJSON(rec.Ships)
	if err != nil {
		return err
	}
	added, err := toJSON(rec.Added)
	if err != nil {
		return err
	}
	removed, err := toJSON(rec.Removed)
	if err != nil {
		return err
	}
	compressed, err := Compress(rec.Results)
	if err != nil {
		return err
	}

	row := Turn{
		BattleID:    rec.BattleID,
		Number:      rec.Turn,
		StartedAt:   rec.StartedAt,
		DurationMS:  rec.Duration.Milliseconds(),
		Results:     compressed,
		ResultsSize: len(rec.Results),
		Ships:       ships,
		Added:       added,
		Removed:     removed,
	}

	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&Battle{}).Where("id = ?", rec.BattleID).
			Update("turns", gorm.Expr("turns + 1")).Error
	})
}

// EndBattle stamps the battle's end time.
func (j *Journal) EndBattle(ctx context.Context, id string, at time.Time) error {
	res := j.db.WithContext(ctx).Model(&Battle{}).Where("id = ?", id).Update("ended_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownBattle, id)
	}
	return nil
}

// Battle loads a battle row.
func (j *Journal) Battle(ctx context.Context, id string) (Battle, error) {
	var row Battle
	err := j.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, fmt.Errorf("%w: %s", ErrUnknownBattle, id)
	}
	return row, err
}

// Turns loads every recorded turn of a battle in order, with results
// decompressed.
func (j *Journal) Turns(ctx context.Context, battleID string) ([]TurnRecord, error) {
	var rows []Turn
	err := j.db.WithContext(ctx).Where("battle_id = ?", battleID).Order("number").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]TurnRecord, len(rows))
	for i, row := range rows {
		rec := TurnRecord{
			BattleID:  row.BattleID,
			Turn:      row.Number,
			StartedAt: row.StartedAt,
			Duration:  time.Duration(row.DurationMS) * time.Millisecond,
		}
		if rec.Results, err = Decompress(row.Results, row.ResultsSize); err != nil {
			return nil, fmt.Errorf("turn %d: %w", row.Number, err)
		}
		if err := fromJSON(row.Ships, &rec.Ships); err != nil {
			return nil, fmt.Errorf("turn %d ships: %w", row.Number, err)
		}
		if err := fromJSON(row.Added, &rec.Added); err != nil {
			return nil, fmt.Errorf("turn %d added: %w", row.Number, err)
		}
		if err := fromJSON(row.Removed, &rec.Removed); err != nil {
			return nil, fmt.Errorf("turn %d removed: %w", row.Number, err)
		}
		out[i] = rec
	}
	return out, nil
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func fromJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
