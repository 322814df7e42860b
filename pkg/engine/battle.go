// Package engine runs the authoritative side of a battle: it admits players,
// gathers their plans, resolves each turn and streams the results back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/event"
	"github.com/opd-ai/go-shipbattle/pkg/journal"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/network"
	"github.com/opd-ai/go-shipbattle/pkg/shipgen"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// Journal receives the battle history. *journal.Journal implements it.
type Journal interface {
	StartBattle(ctx context.Context, info journal.BattleInfo) error
	RecordTurn(ctx context.Context, rec journal.TurnRecord) error
	EndBattle(ctx context.Context, id string, at time.Time) error
}

// player is a seat in the battle. It is only touched by the turn goroutine
// once it has left the inbox.
type player struct {
	id          entity.ClientID
	name        string
	ship        entity.ShipID
	conn        network.Conn
	established bool
	connected   bool
	// jumped players receive the turn's final delta, then leave.
	jumped bool
}

// Battle is the authoritative battle. Join may be called from any goroutine;
// everything else runs on the goroutine calling Run or Turn.
type Battle struct {
	ID string

	cfg          config.ServerConfig
	sectors      []entity.SectorData
	logger       *logging.Logger
	bus          *event.Bus
	journal      Journal
	metrics      *metrics
	turnDuration time.Duration

	ships   *battle.Context
	rng     *rand.Rand
	seed    uint64
	players map[entity.ClientID]*player
	turn    uint64

	inboxLock deadlock.Mutex
	inbox     []*player
	seats     int

	nextShip    atomic.Uint64
	lastTurn    atomic.Int64
	shipCount   atomic.Int64
	playerCount atomic.Int64
	running     atomic.Bool
}

// NewBattle creates an empty battle offering sectors as jump destinations.
// A zero seed picks a random one.
func NewBattle(cfg config.ServerConfig, sectors []entity.SectorData, logger *logging.Logger) (*Battle, error) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	b := &Battle{
		ID:           uuid.NewString(),
		cfg:          cfg,
		sectors:      sectors,
		logger:       logger,
		bus:          event.NewEventBus(),
		turnDuration: sim.ReplayDeadline,
		ships:        battle.NewContext(),
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed:         seed,
		players:      make(map[entity.ClientID]*player),
	}
	b.logger = logger.With("battle_id", b.ID)

	m, err := newMetrics(meter(), b)
	if err != nil {
		return nil, err
	}
	b.metrics = m
	return b, nil
}

// SetJournal attaches a journal. Call before Run.
func (b *Battle) SetJournal(j Journal) { b.journal = j }

// Events returns the battle's event bus.
func (b *Battle) Events() *event.Bus { return b.bus }

// Running reports whether Run is active.
func (b *Battle) Running() bool { return b.running.Load() }

// LastTurn returns when the last turn finished, or the zero time.
func (b *Battle) LastTurn() time.Time {
	ns := b.lastTurn.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// TurnCount returns the number of turns resolved so far.
func (b *Battle) TurnCount() uint64 { return b.turn }

// Join seats a player: it allocates a ship id, sends the Welcome and queues
// the player for the next turn.
func (b *Battle) Join(ctx context.Context, id entity.ClientID, name string, conn network.Conn) error {
	b.inboxLock.Lock()
	if b.cfg.MaxClients > 0 && b.seats >= b.cfg.MaxClients {
		b.inboxLock.Unlock()
		return network.ErrServerFull
	}
	b.seats++
	b.inboxLock.Unlock()

	p := &player{
		id:        id,
		name:      name,
		ship:      entity.ShipID(b.nextShip.Add(1)),
		conn:      conn,
		connected: true,
	}

	welcome := network.Welcome{ClientID: id, ShipID: p.ship, Sectors: b.sectors}
	if err := conn.Send(ctx, network.NewWelcomePacket(welcome)); err != nil {
		b.releaseSeat()
		return fmt.Errorf("send welcome: %w", err)
	}

	b.inboxLock.Lock()
	b.inbox = append(b.inbox, p)
	b.inboxLock.Unlock()
	return nil
}

func (b *Battle) releaseSeat() {
	b.inboxLock.Lock()
	b.seats--
	b.inboxLock.Unlock()
}

func (b *Battle) takeInbox() []*player {
	b.inboxLock.Lock()
	defer b.inboxLock.Unlock()
	joiners := b.inbox
	b.inbox = nil
	return joiners
}

// Run resolves turns until ctx ends. Each turn lasts at least the replay
// window so clients and server stay in step.
func (b *Battle) Run(ctx context.Context) error {
	ctx = logging.WithCorrelationID(ctx, b.ID)
	b.running.Store(true)
	defer b.running.Store(false)

	if b.journal != nil {
		info := journal.BattleInfo{ID: b.ID, Seed: b.seed, ShipLevel: b.cfg.ShipLevel, StartedAt: time.Now()}
		if err := b.journal.StartBattle(ctx, info); err != nil {
			b.logger.Error(ctx, "journal start failed", err)
		}
	}
	b.logger.Info(ctx, "battle started", "seed", b.seed, "ship_level", b.cfg.ShipLevel)

	defer b.shutdown()

	for {
		started := time.Now()
		if err := b.Turn(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		wait := time.NewTimer(time.Until(started.Add(b.turnDuration)))
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil
		case <-wait.C:
		}
	}
}

func (b *Battle) shutdown() {
	ctx := context.Background()
	for _, p := range b.sortedPlayers() {
		p.conn.Close()
	}
	for _, p := range b.takeInbox() {
		p.conn.Close()
	}
	if b.journal != nil {
		if err := b.journal.EndBattle(ctx, b.ID, time.Now()); err != nil {
			b.logger.Error(ctx, "journal end failed", err)
		}
	}
	if err := b.metrics.close(); err != nil {
		b.logger.Warn(ctx, "unregistering battle metrics failed", "error", err)
	}
	b.bus.Publish(event.NewTurnEvent(event.BattleEnded, b, b.turn, sim.LastTick))
	b.logger.Info(ctx, "battle ended", "turns", b.turn)
}

// spawnShip generates a powered-up ship for p.
func (b *Battle) spawnShip(p *player) (*entity.Ship, error) {
	ship, err := shipgen.Generate(b.rng, p.ship, b.cfg.ShipLevel)
	if err != nil {
		return nil, err
	}
	ship.Name = p.name
	wanted := make([]bool, len(ship.Modules))
	for i := range wanted {
		wanted[i] = true
	}
	ship.ApplyPowerPlan(wanted)
	return ship, nil
}
