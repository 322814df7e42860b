// Package battle keeps the registry of ships taking part in one battle and
// drives the per-turn lifecycle across all of them.
package battle

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/module"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// Context is the ship registry of a battle. It is owned by one goroutine.
type Context struct {
	ships map[entity.ShipID]*entity.Ship
}

// NewContext returns an empty battle.
func NewContext() *Context {
	return &Context{ships: make(map[entity.ShipID]*entity.Ship)}
}

// Ship looks a ship up by id.
func (c *Context) Ship(id entity.ShipID) (*entity.Ship, bool) {
	s, ok := c.ships[id]
	return s, ok
}

// Len returns the number of ships in the battle.
func (c *Context) Len() int { return len(c.ships) }

// Ships returns every ship ordered by id.
func (c *Context) Ships() []*entity.Ship {
	ships := make([]*entity.Ship, 0, len(c.ships))
	for _, s := range c.ships {
		ships = append(ships, s)
	}
	slices.SortFunc(ships, func(a, b *entity.Ship) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return ships
}

// AddShip inserts ship, replacing any ship with the same id. Plans that
// targeted the replaced ship are dropped.
func (c *Context) AddShip(ship *entity.Ship) {
	if old, ok := c.ships[ship.ID]; ok && old != ship {
		c.forget(old)
	}
	c.ships[ship.ID] = ship
}

// AddNetworkedShip rebuilds a ship from its snapshot and inserts it.
func (c *Context) AddNetworkedShip(snap entity.ShipSnapshot) (*entity.Ship, error) {
	ship, err := entity.ShipFromSnapshot(snap, module.New)
	if err != nil {
		return nil, err
	}
	c.AddShip(ship)
	return ship, nil
}

// RemoveShip drops a ship from the battle along with every plan aimed at it.
func (c *Context) RemoveShip(id entity.ShipID) (*entity.Ship, bool) {
	ship, ok := c.ships[id]
	if !ok {
		return nil, false
	}
	delete(c.ships, id)
	c.forget(ship)
	return ship, true
}

func (c *Context) forget(ship *entity.Ship) {
	for _, s := range c.ships {
		s.ClearTargetsOn(ship)
	}
}

// ServerPreprocess resolves the turn's plans on the authoritative side.
func (c *Context) ServerPreprocess(rng *rand.Rand) {
	for _, s := range c.Ships() {
		s.ServerPreprocess(rng)
	}
}

// BeforeSimulation collects every module's effects for the turn.
func (c *Context) BeforeSimulation(events sim.EventAdder) {
	for _, s := range c.Ships() {
		s.BeforeSimulation(events)
	}
}

// AfterSimulation finalizes every ship once all ticks have run.
func (c *Context) AfterSimulation() {
	for _, s := range c.Ships() {
		s.AfterSimulation()
	}
}

// Snapshot returns full descriptions of every ship, ordered by id.
func (c *Context) Snapshot() []entity.ShipSnapshot {
	ships := c.Ships()
	snaps := make([]entity.ShipSnapshot, len(ships))
	for i, s := range ships {
		snaps[i] = s.Snapshot()
	}
	return snaps
}

// WriteResults serializes the echoed plans and results of every ship.
func (c *Context) WriteResults(p *protocol.OutPacket) {
	ships := c.Ships()
	p.WriteU32(uint32(len(ships)))
	for _, s := range ships {
		s.WriteResults(p)
	}
}

// ReadResults applies a results payload to the registry. Every ship it names
// must already be registered.
func (c *Context) ReadResults(p *protocol.InPacket) error {
	count := p.ReadU32()
	if err := p.Err(); err != nil {
		return err
	}
	for range count {
		id := entity.ShipID(p.ReadU64())
		if err := p.Err(); err != nil {
			return err
		}
		ship, ok := c.ships[id]
		if !ok {
			return &entity.ResolutionError{Ship: id, Err: entity.ErrUnknownShip}
		}
		if err := ship.ReadResults(c, p); err != nil {
			return fmt.Errorf("ship %d results: %w", id, err)
		}
	}
	return nil
}
