package client

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

func TestParseBehavior(t *testing.T) {
	for _, b := range []Behavior{BehaviorAggressor, BehaviorRaider, BehaviorRunner} {
		got, err := ParseBehavior(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	_, err := ParseBehavior("pacifist")
	assert.Error(t, err)
}

func botBattle(t *testing.T) (*battle.Context, *entity.Ship, *entity.Ship) {
	t.Helper()
	rng := rand.New(rand.NewPCG(21, 8))
	ships := battle.NewContext()
	player := poweredShip(t, rng, 1)
	enemy := poweredShip(t, rng, 2)
	ships.AddShip(player)
	ships.AddShip(enemy)
	return ships, player, enemy
}

func TestBotPlanner_AggressorTargetsCommand(t *testing.T) {
	ships, player, enemy := botBattle(t)
	bot := NewBotPlanner(BehaviorAggressor, nil, rand.New(rand.NewPCG(1, 2)))
	bot.Plan(ships, player)

	enemyCmd, _ := enemy.Command()
	ownCmd, _ := player.Command()
	for _, m := range player.Modules {
		mode, ok := m.TargetMode()
		if !ok {
			assert.Nil(t, m.Base().Target)
			continue
		}
		target := m.Base().Target
		require.NotNil(t, target, "module %d", m.Base().Index)
		assert.True(t, mode.Accepts(player, target), "module %d", m.Base().Index)

		switch mode.Kind {
		case entity.OwnModule:
			assert.Same(t, ownCmd, target.Module)
		case entity.TargetModule:
			assert.Same(t, enemyCmd, target.Module)
		case entity.Beam:
			assert.Same(t, enemy, target.Ship)
			assert.InDelta(t, float64(enemy.Width), target.End.X, 1e-9)
			assert.GreaterOrEqual(t, target.Start.Y, 0.0)
			assert.LessOrEqual(t, target.Start.Y, float64(enemy.Height))
		}
	}
	assert.Zero(t, player.DropIllegalTargets())
	assert.Nil(t, player.State.TargetSector)
}

func TestBotPlanner_NoEnemies(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	ships := battle.NewContext()
	player := poweredShip(t, rng, 1)
	ships.AddShip(player)

	NewBotPlanner(BehaviorRaider, nil, rng).Plan(ships, player)
	for _, m := range player.Modules {
		mode, ok := m.TargetMode()
		if ok && mode.Kind != entity.OwnModule {
			assert.Nil(t, m.Base().Target)
		}
	}
}

func TestBotPlanner_RunnerJumps(t *testing.T) {
	ships, player, _ := botBattle(t)
	sectors := []entity.SectorData{{ID: 4, Name: "Orion Gate"}}
	bot := NewBotPlanner(BehaviorRunner, sectors, rand.New(rand.NewPCG(1, 2)))

	for range DefaultJumpAfter - 1 {
		bot.Plan(ships, player)
		assert.Nil(t, player.State.TargetSector)
	}
	bot.Plan(ships, player)
	require.NotNil(t, player.State.TargetSector)
	assert.Equal(t, entity.SectorID(4), *player.State.TargetSector)
}
