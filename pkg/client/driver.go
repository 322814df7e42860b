// Package client drives the client side of a battle turn by turn, replaying
// the server's results against the local clock.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/event"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/network"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// Phase is the driver's position in the turn cycle.
type Phase int

const (
	AwaitingInitialShips Phase = iota
	AwaitingInitialResults
	Planning
	AwaitingResults
	ReplayWindow
	Done
)

func (p Phase) String() string {
	switch p {
	case AwaitingInitialShips:
		return "awaiting_initial_ships"
	case AwaitingInitialResults:
		return "awaiting_initial_results"
	case Planning:
		return "planning"
	case AwaitingResults:
		return "awaiting_results"
	case ReplayWindow:
		return "replay_window"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrNoPlayerShip means the initial ships did not include the player's own.
var ErrNoPlayerShip = errors.New("player ship missing from battle")

// DefaultFrameInterval paces Run when no interval is given.
const DefaultFrameInterval = time.Second / 60

// Options wire a Driver to its collaborators. Zero fields get defaults.
type Options struct {
	Clock         Clock
	Presenter     Presenter
	Planner       Planner
	Logger        *logging.Logger
	Bus           *event.Bus
	FrameInterval time.Duration
}

// Driver is the client turn state machine. It is not safe for concurrent use.
type Driver struct {
	conn      network.Conn
	clock     Clock
	presenter Presenter
	planner   Planner
	logger    *logging.Logger
	bus       *event.Bus
	frame     time.Duration

	ships    *battle.Context
	playerID entity.ShipID
	player   *entity.Ship

	phase     Phase
	turn      uint64
	turnStart time.Time
	replayer  *sim.Replayer
}

// NewDriver prepares a driver for a connection that has just been welcomed.
func NewDriver(conn network.Conn, welcome network.Welcome, opts Options) *Driver {
	d := &Driver{
		conn:      conn,
		clock:     opts.Clock,
		presenter: opts.Presenter,
		planner:   opts.Planner,
		logger:    opts.Logger,
		bus:       opts.Bus,
		frame:     opts.FrameInterval,
		ships:     battle.NewContext(),
		playerID:  welcome.ShipID,
	}
	if d.clock == nil {
		d.clock = SystemClock{}
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	if d.presenter == nil {
		d.presenter = NewNullPresenter(d.logger)
	}
	if d.bus == nil {
		d.bus = event.NewEventBus()
	}
	if d.frame <= 0 {
		d.frame = DefaultFrameInterval
	}
	d.logger = d.logger.With("client_id", welcome.ClientID, "ship_id", welcome.ShipID)
	return d
}

func (d *Driver) Phase() Phase { return d.phase }
func (d *Driver) Turn() uint64 { return d.turn }
func (d *Driver) Ships() *battle.Context { return d.ships }
func (d *Driver) Events() *event.Bus { return d.bus }

// Player returns the player's ship. It stays valid after the ship has been
// removed from the battle by a jump.
func (d *Driver) Player() *entity.Ship { return d.player }

// Run steps the driver once per frame until the battle ends or ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.frame)
	defer ticker.Stop()
	for {
		if err := d.Step(ctx); err != nil {
			return err
		}
		if d.phase == Done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step advances the state machine by one frame. Only the initial sequence
// and the results that follow a NewShips packet block; everything else polls.
func (d *Driver) Step(ctx context.Context) error {
	switch d.phase {
	case AwaitingInitialShips:
		if err := d.receiveShips(ctx); err != nil {
			return fmt.Errorf("initial ships: %w", err)
		}
		d.phase = AwaitingInitialResults
		return nil

	case AwaitingInitialResults:
		if err := d.receiveResults(ctx); err != nil {
			return fmt.Errorf("initial results: %w", err)
		}
		if err := d.receiveShips(ctx); err != nil {
			return fmt.Errorf("initial ships: %w", err)
		}
		if d.player == nil {
			return ErrNoPlayerShip
		}
		d.logger.Info(ctx, "entered battle", "ships", d.ships.Len())
		d.startTurn()
		return nil

	case Planning:
		elapsed, err := d.advance()
		if err != nil {
			return err
		}
		if elapsed >= sim.PlanDeadline {
			if err := d.sendPlan(ctx); err != nil {
				return err
			}
			d.phase = AwaitingResults
		}
		return nil

	case AwaitingResults:
		if _, err := d.advance(); err != nil {
			return err
		}
		pkt, err := d.conn.TryReceive()
		if errors.Is(err, network.ErrNoPacket) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("turn %d ships: %w", d.turn, err)
		}
		if err := d.applyShips(pkt); err != nil {
			return fmt.Errorf("turn %d ships: %w", d.turn, err)
		}
		if err := d.receiveResults(ctx); err != nil {
			return fmt.Errorf("turn %d results: %w", d.turn, err)
		}
		d.bus.Publish(event.NewTurnEvent(event.ResultsReceived, d, d.turn, d.replayer.NextTick()))
		d.phase = ReplayWindow
		return nil

	case ReplayWindow:
		elapsed, err := d.advance()
		if err != nil {
			return err
		}
		if elapsed >= sim.ReplayDeadline {
			return d.endTurn(ctx)
		}
		return nil

	default:
		return nil
	}
}

func (d *Driver) startTurn() {
	d.turn++
	events := sim.NewEvents()
	d.ships.BeforeSimulation(events)
	d.replayer = sim.NewReplayer(events, d.presenter.Tick)
	d.turnStart = d.clock.Now()
	d.phase = Planning
	d.bus.Publish(event.NewTurnEvent(event.TurnStarted, d, d.turn, 0))
	d.presenter.TurnStarted(d.turn, d.ships, d.player)
}

// advance applies every tick reached so far and returns the elapsed turn time.
func (d *Driver) advance() (time.Duration, error) {
	elapsed := d.clock.Now().Sub(d.turnStart)
	if _, err := d.replayer.AdvanceTo(elapsed); err != nil {
		return elapsed, fmt.Errorf("turn %d replay: %w", d.turn, err)
	}
	return elapsed, nil
}

func (d *Driver) sendPlan(ctx context.Context) error {
	if d.planner != nil {
		d.planner.Plan(d.ships, d.player)
	}
	d.player.DropIllegalTargets()
	p := protocol.NewServerPacket(protocol.ServerPlan)
	d.player.WritePlans(p)
	if err := d.conn.Send(ctx, p); err != nil {
		return fmt.Errorf("turn %d plan: %w", d.turn, err)
	}
	d.bus.Publish(event.NewTurnEvent(event.PlanSent, d, d.turn, d.replayer.NextTick()))
	return nil
}

func (d *Driver) endTurn(ctx context.Context) error {
	if _, err := d.replayer.Close(); err != nil {
		return fmt.Errorf("turn %d replay: %w", d.turn, err)
	}
	d.ships.AfterSimulation()
	d.bus.Publish(event.NewTurnEvent(event.TurnEnded, d, d.turn, sim.LastTick))
	d.presenter.TurnEnded(d.turn)

	if err := d.receiveShips(ctx); err != nil {
		return fmt.Errorf("turn %d ships: %w", d.turn, err)
	}

	switch {
	case d.player.State.Jumping:
		d.logger.Info(ctx, "jumped out of battle", "turn", d.turn)
		d.finish()
	case d.presenter.ShouldClose():
		d.logger.Info(ctx, "leaving battle", "turn", d.turn)
		d.finish()
	default:
		d.startTurn()
	}
	return nil
}

func (d *Driver) finish() {
	d.phase = Done
	d.bus.Publish(event.NewTurnEvent(event.BattleEnded, d, d.turn, sim.LastTick))
}

func (d *Driver) receiveShips(ctx context.Context) error {
	pkt, err := d.conn.Receive(ctx)
	if err != nil {
		return err
	}
	return d.applyShips(pkt)
}

func (d *Driver) applyShips(pkt *protocol.InPacket) error {
	if err := pkt.ExpectClient(protocol.ClientNewShips); err != nil {
		return err
	}
	delta, err := battle.ReadShipDelta(pkt)
	if err != nil {
		return err
	}
	out, err := d.ships.ApplyShipDelta(delta, d.playerID)
	if err != nil {
		return err
	}

	for _, id := range out.Removed {
		d.bus.Publish(event.NewShipEvent(event.ShipRemoved, d, id, nil))
	}
	for _, s := range out.Added {
		d.bus.Publish(event.NewShipEvent(event.ShipAdded, d, s.ID, s))
	}
	if out.Player != nil {
		d.player = out.Player
		d.bus.Publish(event.NewShipEvent(event.PlayerShipReplaced, d, out.Player.ID, out.Player))
	}
	d.presenter.ShipsChanged(out)
	return nil
}

func (d *Driver) receiveResults(ctx context.Context) error {
	pkt, err := d.conn.Receive(ctx)
	if err != nil {
		return err
	}
	if err := pkt.ExpectClient(protocol.ClientSimResults); err != nil {
		return err
	}
	return d.ships.ReadResults(pkt)
}
