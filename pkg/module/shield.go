package module

import (
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

const (
	// ShieldCapacity is the damage a shield soaks per turn on its module.
	ShieldCapacity = 2
	// ShieldTick is when a shield comes up during replay.
	ShieldTick = 0
)

// Shield protects one module of its own ship.
type Shield struct {
	entity.ModuleBase

	capacity int
}

func NewShield() *Shield {
	return &Shield{ModuleBase: entity.NewModuleBase(1, 1, 2, 1, 3)}
}

func (m *Shield) Type() entity.ModuleType { return entity.TypeShield }

func (m *Shield) TargetMode() (entity.TargetMode, bool) {
	return entity.TargetMode{Kind: entity.OwnModule}, true
}

// Capacity returns the absorb capacity resolved for this turn.
func (m *Shield) Capacity() int { return m.capacity }

func (m *Shield) ServerPreprocess(_ *entity.ShipState, _ *rand.Rand) {
	m.capacity = 0
	if m.IsActive() && m.Target != nil && m.Target.Module != nil {
		m.capacity = ShieldCapacity
	}
}

func (m *Shield) BeforeSimulation(ship *entity.Ship, events sim.EventAdder) {
	if m.capacity == 0 || m.Target == nil || m.Target.Module == nil {
		return
	}
	covered := m.Target.Module.Base().Index
	capacity := m.capacity
	events.AddEvent(ShieldTick, func() {
		ship.State.SetShield(covered, capacity)
	})
}

func (m *Shield) WritePlans(p *protocol.OutPacket) { m.WriteTargetPlan(p) }

func (m *Shield) ReadPlans(r entity.Resolver, p *protocol.InPacket) error {
	return m.ReadTargetPlan(r, p)
}

func (m *Shield) WriteResults(p *protocol.OutPacket) { p.WriteU8(uint8(m.capacity)) }

func (m *Shield) ReadResults(p *protocol.InPacket) error {
	m.capacity = int(p.ReadU8())
	return p.Err()
}
