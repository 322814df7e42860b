package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/event"
	"github.com/opd-ai/go-shipbattle/pkg/journal"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
	"github.com/opd-ai/go-shipbattle/pkg/validation"
)

// Plan outcomes reported to metrics.
const (
	planApplied  = "applied"
	planMissing  = "missing"
	planRejected = "rejected"
)

type planResult struct {
	player *player
	packet *protocol.InPacket
	err    error
}

// Turn resolves one turn:
//
//  1. effects of the previous results are registered for replay,
//  2. plans are gathered and newcomers receive ships,
//  3. the plans are resolved and sent to established players, preceded by
//     the newcomers' ships,
//  4. the previous results are replayed to the end of the turn,
//  5. departures and respawns are broadcast,
//  6. newcomers receive the full battle.
func (b *Battle) Turn(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	started := time.Now()
	b.turn++
	turn := b.turn
	b.bus.Publish(event.NewTurnEvent(event.TurnStarted, b, turn, 0))

	events := sim.NewEvents()
	b.ships.BeforeSimulation(events)

	plans, err := b.collectPlans(ctx)
	if err != nil {
		return err
	}

	joiners := b.admit(ctx)
	for _, pr := range plans {
		b.applyPlan(ctx, pr)
	}

	b.ships.ServerPreprocess(b.rng)
	results := protocol.NewClientPacket(protocol.ClientSimResults)
	b.ships.WriteResults(results)

	pre := battle.ShipDelta{}
	for _, p := range joiners {
		if ship, ok := b.ships.Ship(p.ship); ok {
			pre.Added = append(pre.Added, ship.Snapshot())
		}
	}
	b.broadcast(ctx, newShipsPacket(pre), results)

	if _, err := sim.NewReplayer(events, nil).Close(); err != nil {
		return err
	}
	b.ships.AfterSimulation()

	post := b.settle(ctx)
	b.broadcast(ctx, newShipsPacket(post))
	b.dropDeparted(ctx)

	b.welcome(ctx, joiners)

	b.shipCount.Store(int64(b.ships.Len()))
	b.playerCount.Store(int64(len(b.players)))
	duration := time.Since(started)
	b.metrics.recordTurn(ctx, duration)
	b.record(ctx, journal.TurnRecord{
		BattleID:  b.ID,
		Turn:      turn,
		StartedAt: started,
		Duration:  duration,
		Results:   results.Bytes(),
		Ships:     journal.Summarize(b.ships.Ships()),
		Added:     shipIDs(pre.Added, post.Added),
		Removed:   post.Removed,
	})

	b.lastTurn.Store(time.Now().UnixNano())
	b.bus.Publish(event.NewTurnEvent(event.TurnEnded, b, turn, sim.LastTick))
	b.logger.Debug(ctx, "turn resolved", "turn", turn, "ships", b.ships.Len(), "players", len(b.players), "duration", duration)
	return nil
}

// collectPlans waits up to the plan timeout for one packet from every
// established player. Players that stay silent keep their previous plans.
func (b *Battle) collectPlans(ctx context.Context) ([]planResult, error) {
	waiting := make([]*player, 0, len(b.players))
	for _, p := range b.sortedPlayers() {
		if p.established && p.connected {
			waiting = append(waiting, p)
		}
	}
	if len(waiting) == 0 {
		return nil, nil
	}

	planCtx := ctx
	if b.cfg.PlanTimeout > 0 {
		var cancel context.CancelFunc
		planCtx, cancel = context.WithTimeout(ctx, b.cfg.PlanTimeout)
		defer cancel()
	}

	out := make(chan planResult, len(waiting))
	var wg sync.WaitGroup
	for _, p := range waiting {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pkt, err := p.conn.Receive(planCtx)
			out <- planResult{player: p, packet: pkt, err: err}
		}()
	}
	wg.Wait()
	close(out)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var plans []planResult
	for pr := range out {
		switch {
		case pr.err == nil:
			plans = append(plans, pr)
		case errors.Is(pr.err, context.DeadlineExceeded):
			b.metrics.countPlan(ctx, planMissing)
			b.logger.Debug(ctx, "plan missing", "client_id", pr.player.id, "turn", b.turn)
		default:
			b.disconnect(ctx, pr.player, pr.err)
		}
	}
	slices.SortFunc(plans, func(x, y planResult) int {
		switch {
		case x.player.id < y.player.id:
			return -1
		case x.player.id > y.player.id:
			return 1
		}
		return 0
	})
	return plans, nil
}

// admit moves queued players into the battle and gives them ships.
func (b *Battle) admit(ctx context.Context) []*player {
	var joiners []*player
	for _, p := range b.takeInbox() {
		ship, err := b.spawnShip(p)
		if err != nil {
			b.logger.Error(ctx, "ship generation failed", err, "client_id", p.id)
			p.conn.Close()
			b.releaseSeat()
			continue
		}
		b.ships.AddShip(ship)
		b.players[p.id] = p
		joiners = append(joiners, p)
		b.bus.Publish(event.NewShipEvent(event.ShipAdded, b, ship.ID, ship))
	}
	return joiners
}

// applyPlan reads a Plan onto the player's ship. Stale references are
// skipped; anything else malformed costs the player their connection.
func (b *Battle) applyPlan(ctx context.Context, pr planResult) {
	p := pr.player
	ship, ok := b.ships.Ship(p.ship)
	if !ok {
		return
	}
	if err := pr.packet.ExpectServer(protocol.ServerPlan); err != nil {
		b.metrics.countPlan(ctx, planRejected)
		b.disconnect(ctx, p, err)
		return
	}

	wanted, err := ship.ReadPlans(b.ships, pr.packet)
	if err != nil {
		var stale *entity.ResolutionError
		if errors.As(err, &stale) {
			b.metrics.countPlan(ctx, planRejected)
			b.logger.Warn(ctx, "plan references unknown entity", "client_id", p.id, "error", err)
			return
		}
		b.metrics.countPlan(ctx, planRejected)
		b.disconnect(ctx, p, err)
		return
	}

	if dropped := ship.DropIllegalTargets(); dropped > 0 {
		b.logger.Debug(ctx, "dropped illegal targets", "client_id", p.id, "count", dropped)
	}
	ship.ApplyPowerPlan(wanted)

	if sector := ship.State.TargetSector; sector != nil {
		if err := validation.ValidateSector(*sector, b.sectors); err != nil {
			b.logger.Warn(ctx, "plan names unknown sector", "client_id", p.id, "error", err)
			ship.State.TargetSector = nil
		}
	}
	ship.State.Jumping = ship.State.TargetSector != nil && ship.State.Thrust > 0
	b.metrics.countPlan(ctx, planApplied)
}

// settle removes departed ships and respawns destroyed ones, returning the
// delta every established player must apply.
func (b *Battle) settle(ctx context.Context) battle.ShipDelta {
	var d battle.ShipDelta
	for _, p := range b.sortedPlayers() {
		ship, ok := b.ships.Ship(p.ship)
		if !ok {
			continue
		}
		switch {
		case !p.connected:
			b.ships.RemoveShip(p.ship)
			d.Removed = append(d.Removed, p.ship)
			b.bus.Publish(event.NewShipEvent(event.ShipRemoved, b, p.ship, ship))
		case ship.State.Jumping:
			b.ships.RemoveShip(p.ship)
			d.Removed = append(d.Removed, p.ship)
			p.jumped = true
			b.logger.Info(ctx, "ship jumped", "client_id", p.id, "ship_id", p.ship, "sector", *ship.State.TargetSector)
			b.bus.Publish(event.NewShipEvent(event.ShipRemoved, b, p.ship, ship))
		case ship.Destroyed():
			fresh, err := b.spawnShip(p)
			if err != nil {
				b.logger.Error(ctx, "respawn failed", err, "client_id", p.id)
				b.ships.RemoveShip(p.ship)
				d.Removed = append(d.Removed, p.ship)
				p.connected = false
				continue
			}
			b.ships.AddShip(fresh)
			d.Added = append(d.Added, fresh.Snapshot())
			b.logger.Info(ctx, "ship destroyed", "client_id", p.id, "ship_id", p.ship)
			b.bus.Publish(event.NewShipEvent(event.PlayerShipReplaced, b, p.ship, fresh))
		}
	}
	return d
}

// dropDeparted closes the connections of players who left. A player whose
// ship is still in the battle stays seated until the next delta removes it.
func (b *Battle) dropDeparted(ctx context.Context) {
	for _, p := range b.sortedPlayers() {
		if p.connected && !p.jumped {
			continue
		}
		p.conn.Close()
		if _, ok := b.ships.Ship(p.ship); ok {
			continue
		}
		delete(b.players, p.id)
		b.releaseSeat()
		b.bus.Publish(event.NewPlayerEvent(event.PlayerLeft, b, p.id, p.ship, p.name))
		b.logger.Info(ctx, "player left", "client_id", p.id, "player", p.name)
	}
}

// welcome brings newcomers up to date: the whole battle, the results that
// accompany it and an empty post-turn delta.
func (b *Battle) welcome(ctx context.Context, joiners []*player) {
	if len(joiners) == 0 {
		return
	}
	full := newShipsPacket(battle.ShipDelta{Added: b.ships.Snapshot()})
	results := protocol.NewClientPacket(protocol.ClientSimResults)
	b.ships.WriteResults(results)
	empty := newShipsPacket(battle.ShipDelta{})

	for _, p := range joiners {
		if !p.connected {
			continue
		}
		if err := b.send(ctx, p, full, results, empty); err != nil {
			b.disconnect(ctx, p, err)
			continue
		}
		p.established = true
		b.bus.Publish(event.NewPlayerEvent(event.PlayerJoined, b, p.id, p.ship, p.name))
		b.logger.Info(ctx, "player entered battle", "client_id", p.id, "player", p.name, "ship_id", p.ship)
	}
}

// broadcast sends packets in order to every established, connected player.
func (b *Battle) broadcast(ctx context.Context, packets ...*protocol.OutPacket) {
	for _, p := range b.sortedPlayers() {
		if !p.established || !p.connected {
			continue
		}
		if err := b.send(ctx, p, packets...); err != nil {
			b.disconnect(ctx, p, err)
		}
	}
}

func (b *Battle) send(ctx context.Context, p *player, packets ...*protocol.OutPacket) error {
	for _, pkt := range packets {
		if err := p.conn.Send(ctx, pkt); err != nil {
			return err
		}
	}
	return nil
}

// disconnect marks a player gone. Their ship leaves with the next delta.
func (b *Battle) disconnect(ctx context.Context, p *player, err error) {
	if !p.connected {
		return
	}
	p.connected = false
	b.metrics.countDisconnect(ctx)
	b.logger.Warn(ctx, "player disconnected", "client_id", p.id, "player", p.name, "error", err)
}

func (b *Battle) sortedPlayers() []*player {
	players := make([]*player, 0, len(b.players))
	for _, p := range b.players {
		players = append(players, p)
	}
	slices.SortFunc(players, func(x, y *player) int {
		switch {
		case x.id < y.id:
			return -1
		case x.id > y.id:
			return 1
		}
		return 0
	})
	return players
}

func (b *Battle) record(ctx context.Context, rec journal.TurnRecord) {
	if b.journal == nil {
		return
	}
	if err := b.journal.RecordTurn(ctx, rec); err != nil {
		b.logger.Error(ctx, "journal write failed", err, "turn", rec.Turn)
	}
}

func newShipsPacket(d battle.ShipDelta) *protocol.OutPacket {
	p := protocol.NewClientPacket(protocol.ClientNewShips)
	battle.WriteShipDelta(p, d)
	return p
}

func shipIDs(groups ...[]entity.ShipSnapshot) []entity.ShipID {
	var ids []entity.ShipID
	for _, g := range groups {
		for _, s := range g {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
