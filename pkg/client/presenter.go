package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/render"
)

// Clock supplies the time the driver measures turns against.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Presenter is the display side of a battle. All calls happen on the
// driver's goroutine.
type Presenter interface {
	// ShouldClose is polled at the end of every turn.
	ShouldClose() bool
	TurnStarted(turn uint64, ships *battle.Context, player *entity.Ship)
	// Tick is called after each simulation tick is applied.
	Tick(tick int)
	ShipsChanged(out battle.DeltaOutcome)
	TurnEnded(turn uint64)
}

// Planner edits the player's ship before its plan is sent: power flags,
// module targets and the jump sector.
type Planner interface {
	Plan(ships *battle.Context, player *entity.Ship)
}

// NullPresenter draws nothing. At debug level it logs the player's ship
// grid at the start of every turn.
type NullPresenter struct {
	logger *logging.Logger
	closed atomic.Bool
}

// NewNullPresenter creates a presenter logging through logger.
func NewNullPresenter(logger *logging.Logger) *NullPresenter {
	return &NullPresenter{logger: logger}
}

// RequestClose makes the battle end after the current turn.
func (p *NullPresenter) RequestClose() { p.closed.Store(true) }

func (p *NullPresenter) ShouldClose() bool { return p.closed.Load() }

func (p *NullPresenter) TurnStarted(turn uint64, ships *battle.Context, player *entity.Ship) {
	ctx := context.Background()
	if player == nil {
		return
	}
	p.logger.Debug(ctx, "turn started",
		"turn", turn,
		"ships", ships.Len(),
		"hp", player.HP(),
		"grid", render.ShipGrid(player),
	)
}

func (p *NullPresenter) Tick(int) {}

func (p *NullPresenter) ShipsChanged(out battle.DeltaOutcome) {
	ctx := context.Background()
	if len(out.Added) == 0 && len(out.Removed) == 0 && out.Player == nil {
		return
	}
	p.logger.Debug(ctx, "ships changed",
		"added", len(out.Added),
		"removed", len(out.Removed),
		"respawned", out.Player != nil,
	)
}

func (p *NullPresenter) TurnEnded(turn uint64) {
	p.logger.Debug(context.Background(), "turn ended", "turn", turn)
}
