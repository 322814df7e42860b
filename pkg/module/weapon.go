package module

import (
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/physics"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// Projectile timing and damage.
const (
	ProjectileFireTick   = 10
	ProjectileImpactTick = 20
	ProjectileDamage     = 1

	minHitChance = 0.3
)

// HitChance is the probability of a projectile hitting a ship with the given
// thrust. Each unit of thrust makes the target ten percent harder to hit.
func HitChance(thrust int) float64 {
	return max(minHitChance, 1-0.1*float64(thrust))
}

// ProjectileWeapon fires a single shot at a module of another ship.
type ProjectileWeapon struct {
	entity.ModuleBase

	fired    bool
	hit      bool
	inFlight bool
}

func NewProjectileWeapon() *ProjectileWeapon {
	return &ProjectileWeapon{ModuleBase: entity.NewModuleBase(1, 1, 1, 1, 2)}
}

func (m *ProjectileWeapon) Type() entity.ModuleType { return entity.TypeProjectileWeapon }

func (m *ProjectileWeapon) TargetMode() (entity.TargetMode, bool) {
	return entity.TargetMode{Kind: entity.TargetModule}, true
}

// Result returns whether the weapon fired this turn and whether it hit.
func (m *ProjectileWeapon) Result() (fired, hit bool) { return m.fired, m.hit }

func (m *ProjectileWeapon) ServerPreprocess(_ *entity.ShipState, rng *rand.Rand) {
	m.fired, m.hit = false, false
	if !m.IsActive() || m.Target == nil || m.Target.Module == nil {
		return
	}
	m.fired = true
	m.hit = rng.Float64() < HitChance(m.Target.Ship.State.Thrust)
}

// InFlight reports whether a shot is between its fire and impact ticks.
func (m *ProjectileWeapon) InFlight() bool { return m.inFlight }

func (m *ProjectileWeapon) BeforeSimulation(_ *entity.Ship, events sim.EventAdder) {
	m.inFlight = false
	if !m.fired || m.Target == nil || m.Target.Module == nil {
		return
	}
	target := m.Target.Ship
	index := m.Target.Module.Base().Index
	hit := m.hit
	events.AddEvent(ProjectileFireTick, func() { m.inFlight = true })
	events.AddEvent(ProjectileImpactTick, func() {
		m.inFlight = false
		if hit {
			target.Damage(index, ProjectileDamage)
		}
	})
}

func (m *ProjectileWeapon) WritePlans(p *protocol.OutPacket) { m.WriteTargetPlan(p) }

func (m *ProjectileWeapon) ReadPlans(r entity.Resolver, p *protocol.InPacket) error {
	return m.ReadTargetPlan(r, p)
}

func (m *ProjectileWeapon) WriteResults(p *protocol.OutPacket) {
	p.WriteBool(m.fired)
	p.WriteBool(m.hit)
}

func (m *ProjectileWeapon) ReadResults(p *protocol.InPacket) error {
	m.fired = p.ReadBool()
	m.hit = p.ReadBool()
	return p.Err()
}

// Beam timing and damage.
const (
	BeamTick   = 30
	BeamDamage = 1
)

// BeamWeapon sweeps a segment across another ship, damaging every module it
// crosses. Endpoints are in the target ship's grid units.
type BeamWeapon struct {
	entity.ModuleBase

	fired bool
	start physics.Vector2D
	end   physics.Vector2D
}

func NewBeamWeapon() *BeamWeapon {
	return &BeamWeapon{ModuleBase: entity.NewModuleBase(1, 1, 3, 1, 2)}
}

func (m *BeamWeapon) Type() entity.ModuleType { return entity.TypeBeamWeapon }

func (m *BeamWeapon) TargetMode() (entity.TargetMode, bool) {
	return entity.TargetMode{Kind: entity.Beam, BeamCount: 1}, true
}

// Result returns whether the beam fired and the segment actually swept.
func (m *BeamWeapon) Result() (fired bool, start, end physics.Vector2D) {
	return m.fired, m.start, m.end
}

func (m *BeamWeapon) ServerPreprocess(_ *entity.ShipState, _ *rand.Rand) {
	m.fired = m.IsActive() && m.Target != nil
	if !m.fired {
		m.start, m.end = physics.Vector2D{}, physics.Vector2D{}
		return
	}
	m.start, m.end = m.Target.Start, m.Target.End
}

func (m *BeamWeapon) BeforeSimulation(_ *entity.Ship, events sim.EventAdder) {
	if !m.fired || m.Target == nil {
		return
	}
	target := m.Target.Ship
	cells := physics.SegmentCells(m.start, m.end)
	events.AddEvent(BeamTick, func() {
		hit := make(map[entity.ModuleIndex]bool)
		for _, c := range cells {
			mod, ok := target.ModuleAt(c.X, c.Y)
			if !ok || hit[mod.Base().Index] {
				continue
			}
			hit[mod.Base().Index] = true
			target.Damage(mod.Base().Index, BeamDamage)
		}
	})
}

func (m *BeamWeapon) WritePlans(p *protocol.OutPacket) { m.WriteTargetPlan(p) }

func (m *BeamWeapon) ReadPlans(r entity.Resolver, p *protocol.InPacket) error {
	return m.ReadTargetPlan(r, p)
}

func (m *BeamWeapon) WriteResults(p *protocol.OutPacket) {
	p.WriteBool(m.fired)
	p.WriteF64(m.start.X)
	p.WriteF64(m.start.Y)
	p.WriteF64(m.end.X)
	p.WriteF64(m.end.Y)
}

func (m *BeamWeapon) ReadResults(p *protocol.InPacket) error {
	m.fired = p.ReadBool()
	m.start = physics.Vector2D{X: p.ReadF64(), Y: p.ReadF64()}
	m.end = physics.Vector2D{X: p.ReadF64(), Y: p.ReadF64()}
	return p.Err()
}
