package module

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/physics"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

type registry map[entity.ShipID]*entity.Ship

func (r registry) Ship(id entity.ShipID) (*entity.Ship, bool) {
	s, ok := r[id]
	return s, ok
}

func buildShip(t *testing.T, id entity.ShipID, layout ...any) *entity.Ship {
	t.Helper()
	ship := entity.NewShip(id, "")
	for i := 0; i < len(layout); i += 3 {
		m, err := NewAt(layout[i].(entity.ModuleType), layout[i+1].(int), layout[i+2].(int))
		require.NoError(t, err)
		require.NoError(t, ship.AddModule(m))
	}
	return ship
}

func runTurn(t *testing.T, ships ...*entity.Ship) {
	t.Helper()
	events := sim.NewEvents()
	for _, s := range ships {
		s.BeforeSimulation(events)
	}
	_, err := sim.NewReplayer(events, nil).Close()
	require.NoError(t, err)
	for _, s := range ships {
		s.AfterSimulation()
	}
}

func TestNew_AllVariants(t *testing.T) {
	tests := []struct {
		typ       entity.ModuleType
		width     int
		height    int
		powerCost int
	}{
		{entity.TypeCommand, 1, 2, 1},
		{entity.TypeEngine, 1, 1, 2},
		{entity.TypeSolar, 1, 1, 0},
		{entity.TypeShield, 1, 1, 2},
		{entity.TypeProjectileWeapon, 1, 1, 1},
		{entity.TypeBeamWeapon, 1, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			m, err := New(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, m.Type())
			b := m.Base()
			assert.Equal(t, tt.width, b.Width)
			assert.Equal(t, tt.height, b.Height)
			assert.Equal(t, tt.powerCost, b.PowerCost)
			assert.Equal(t, b.MaxHP, b.HP)
			assert.False(t, b.IsActive())
		})
	}

	_, err := New(entity.ModuleType(200))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEngine_ThrustFollowsPower(t *testing.T) {
	ship := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeEngine, 1, 0, entity.TypeEngine, 1, 1)

	require.Empty(t, ship.ApplyPowerPlan([]bool{true, true, true}))
	assert.Equal(t, 2, ship.State.Thrust)

	ship.Deactivate(2)
	assert.Equal(t, 1, ship.State.Thrust)
}

func TestSolar_DeactivationCascades(t *testing.T) {
	ship := buildShip(t, 1,
		entity.TypeSolar, 0, 0,
		entity.TypeEngine, 1, 0,
		entity.TypeEngine, 1, 1,
	)
	require.Empty(t, ship.ApplyPowerPlan([]bool{true, true, true}))
	require.Equal(t, SolarOutput, ship.State.PowerProduced)
	require.Equal(t, 4, ship.State.PowerConsumed)

	ship.Deactivate(0)

	assert.Equal(t, []bool{false, false, false}, ship.ActiveFlags())
	assert.Equal(t, 0, ship.State.Thrust)
	assert.Equal(t, 0, ship.State.PowerConsumed)
}

func TestTargetModes(t *testing.T) {
	_, ok := NewEngine().TargetMode()
	assert.False(t, ok)

	mode, ok := NewShield().TargetMode()
	assert.True(t, ok)
	assert.Equal(t, entity.OwnModule, mode.Kind)

	mode, ok = NewProjectileWeapon().TargetMode()
	assert.True(t, ok)
	assert.Equal(t, entity.TargetModule, mode.Kind)

	mode, ok = NewBeamWeapon().TargetMode()
	assert.True(t, ok)
	assert.Equal(t, entity.TargetMode{Kind: entity.Beam, BeamCount: 1}, mode)
}

func TestHitChance(t *testing.T) {
	assert.InDelta(t, 1.0, HitChance(0), 1e-9)
	assert.InDelta(t, 0.8, HitChance(2), 1e-9)
	assert.InDelta(t, 0.3, HitChance(9), 1e-9)
}

func TestProjectileWeapon_HitDamagesTarget(t *testing.T) {
	attacker := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeProjectileWeapon, 1, 0)
	target := buildShip(t, 2, entity.TypeEngine, 0, 0)
	weapon := attacker.Modules[1].(*ProjectileWeapon)
	weapon.Target = &entity.TargetData{Kind: entity.TargetModule, Ship: target, Module: target.Modules[0]}
	require.Empty(t, attacker.ApplyPowerPlan([]bool{true, true}))

	// Thrust zero always hits.
	attacker.ServerPreprocess(rand.New(rand.NewPCG(1, 2)))
	fired, hit := weapon.Result()
	require.True(t, fired)
	require.True(t, hit)

	before := target.Modules[0].Base().HP
	runTurn(t, attacker, target)
	assert.Equal(t, before-ProjectileDamage, target.Modules[0].Base().HP)
}

func TestProjectileWeapon_FlightTicks(t *testing.T) {
	target := buildShip(t, 2, entity.TypeEngine, 0, 0)
	target.State.Thrust = 100
	attacker := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeProjectileWeapon, 1, 0)
	weapon := attacker.Modules[1].(*ProjectileWeapon)
	weapon.Target = &entity.TargetData{Kind: entity.TargetModule, Ship: target, Module: target.Modules[0]}
	require.Empty(t, attacker.ApplyPowerPlan([]bool{true, true}))

	// Find a seed that misses; a miss still flies.
	for seed := uint64(0); ; seed++ {
		attacker.ServerPreprocess(rand.New(rand.NewPCG(seed, seed)))
		if _, hit := weapon.Result(); !hit {
			break
		}
	}

	events := sim.NewEvents()
	attacker.BeforeSimulation(events)
	inFlight := map[int]bool{}
	for tick := 0; tick <= sim.LastTick; tick++ {
		require.NoError(t, events.ApplyTick(tick))
		inFlight[tick] = weapon.InFlight()
	}

	assert.False(t, inFlight[ProjectileFireTick-1])
	assert.True(t, inFlight[ProjectileFireTick])
	assert.True(t, inFlight[ProjectileImpactTick-1])
	assert.False(t, inFlight[ProjectileImpactTick])
	assert.Equal(t, target.Modules[0].Base().MaxHP, target.Modules[0].Base().HP)
}

func TestProjectileWeapon_InactiveDoesNotFire(t *testing.T) {
	target := buildShip(t, 2, entity.TypeEngine, 0, 0)
	weapon := NewProjectileWeapon()
	weapon.Target = &entity.TargetData{Kind: entity.TargetModule, Ship: target, Module: target.Modules[0]}

	weapon.ServerPreprocess(&entity.ShipState{}, rand.New(rand.NewPCG(1, 2)))
	fired, _ := weapon.Result()
	assert.False(t, fired)
}

func TestShield_AbsorbsProjectile(t *testing.T) {
	defender := buildShip(t, 2, entity.TypeSolar, 0, 0, entity.TypeShield, 1, 0, entity.TypeEngine, 2, 0)
	shield := defender.Modules[1].(*Shield)
	engine := defender.Modules[2]
	shield.Target = &entity.TargetData{Kind: entity.OwnModule, Ship: defender, Module: engine}
	require.Empty(t, defender.ApplyPowerPlan([]bool{true, true, false}))

	attacker := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeProjectileWeapon, 1, 0)
	weapon := attacker.Modules[1].(*ProjectileWeapon)
	weapon.Target = &entity.TargetData{Kind: entity.TargetModule, Ship: defender, Module: engine}
	require.Empty(t, attacker.ApplyPowerPlan([]bool{true, true}))

	rng := rand.New(rand.NewPCG(3, 4))
	defender.ServerPreprocess(rng)
	attacker.ServerPreprocess(rng)
	require.Equal(t, ShieldCapacity, shield.Capacity())

	runTurn(t, defender, attacker)
	assert.Equal(t, engine.Base().MaxHP, engine.Base().HP)
	assert.Zero(t, defender.State.Shield(engine.Base().Index), "shields expire after the turn")
}

func TestBeamWeapon_DamagesCrossedModules(t *testing.T) {
	target := buildShip(t, 2,
		entity.TypeEngine, 0, 0,
		entity.TypeSolar, 1, 0,
		entity.TypeEngine, 2, 0,
		entity.TypeEngine, 0, 1,
	)
	attacker := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeBeamWeapon, 1, 0)
	beam := attacker.Modules[1].(*BeamWeapon)
	beam.Target = &entity.TargetData{
		Kind:  entity.Beam,
		Ship:  target,
		Start: physics.Vector2D{X: 0.5, Y: 0.5},
		End:   physics.Vector2D{X: 2.5, Y: 0.5},
	}
	require.Empty(t, attacker.ApplyPowerPlan([]bool{true, true}))
	attacker.ServerPreprocess(rand.New(rand.NewPCG(1, 1)))

	runTurn(t, attacker, target)

	for i := 0; i < 3; i++ {
		b := target.Modules[i].Base()
		assert.Equal(t, b.MaxHP-BeamDamage, b.HP, "module %d", i)
	}
	assert.Equal(t, target.Modules[3].Base().MaxHP, target.Modules[3].Base().HP)
}

func TestWeapon_ResultsRoundTrip(t *testing.T) {
	target := buildShip(t, 2, entity.TypeEngine, 0, 0)
	reg := registry{2: target}

	ship := buildShip(t, 1, entity.TypeSolar, 0, 0, entity.TypeBeamWeapon, 1, 0)
	server := ship.Modules[1].(*BeamWeapon)
	server.Target = &entity.TargetData{Kind: entity.Beam, Ship: target, End: physics.Vector2D{X: 1, Y: 1}}
	require.Empty(t, ship.ApplyPowerPlan([]bool{true, true}))
	ship.ServerPreprocess(rand.New(rand.NewPCG(1, 1)))

	out := protocol.NewClientPacket(protocol.ClientSimResults)
	server.WritePlans(out)
	server.WriteResults(out)

	client := NewBeamWeapon()
	in, err := protocol.ParseInPacket(out.Bytes())
	require.NoError(t, err)
	require.NoError(t, client.ReadPlans(reg, in))
	require.NoError(t, client.ReadResults(in))

	fired, start, end := client.Result()
	assert.True(t, fired)
	assert.Equal(t, physics.Vector2D{}, start)
	assert.Equal(t, physics.Vector2D{X: 1, Y: 1}, end)
	require.NotNil(t, client.Target)
	assert.Same(t, target, client.Target.Ship)
}
