package client

import (
	"fmt"
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/physics"
)

// Behavior selects how a BotPlanner plays.
type Behavior int

const (
	BehaviorAggressor Behavior = iota // Fires at enemy command modules
	BehaviorRaider                    // Fires at random enemy modules
	BehaviorRunner                    // Raids, then jumps out
)

func (b Behavior) String() string {
	switch b {
	case BehaviorAggressor:
		return "aggressor"
	case BehaviorRaider:
		return "raider"
	case BehaviorRunner:
		return "runner"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// ParseBehavior maps a behavior name to its value.
func ParseBehavior(s string) (Behavior, error) {
	for _, b := range []Behavior{BehaviorAggressor, BehaviorRaider, BehaviorRunner} {
		if b.String() == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown behavior %q", s)
}

// DefaultJumpAfter is how many turns a runner fights before jumping.
const DefaultJumpAfter = 3

// BotPlanner plans without a human: every module powered, every weapon
// aimed at an enemy and shields over the command module.
type BotPlanner struct {
	behavior  Behavior
	sectors   []entity.SectorData
	rng       *rand.Rand
	jumpAfter int
	turns     int
}

// NewBotPlanner creates a bot. sectors are the jump destinations offered
// in the Welcome.
func NewBotPlanner(behavior Behavior, sectors []entity.SectorData, rng *rand.Rand) *BotPlanner {
	return &BotPlanner{
		behavior:  behavior,
		sectors:   sectors,
		rng:       rng,
		jumpAfter: DefaultJumpAfter,
	}
}

// Plan implements Planner.
func (b *BotPlanner) Plan(ships *battle.Context, player *entity.Ship) {
	b.turns++

	wanted := make([]bool, len(player.Modules))
	for i := range wanted {
		wanted[i] = true
	}
	player.ApplyPowerPlan(wanted)

	var enemies []*entity.Ship
	for _, s := range ships.Ships() {
		if s != player && !s.Destroyed() {
			enemies = append(enemies, s)
		}
	}

	for _, m := range player.Modules {
		mode, ok := m.TargetMode()
		if !ok {
			continue
		}
		m.Base().Target = b.pick(mode, player, enemies)
	}

	if b.behavior == BehaviorRunner && b.turns >= b.jumpAfter && len(b.sectors) > 0 {
		id := b.sectors[b.rng.IntN(len(b.sectors))].ID
		player.State.TargetSector = &id
	}
}

func (b *BotPlanner) pick(mode entity.TargetMode, player *entity.Ship, enemies []*entity.Ship) *entity.TargetData {
	if mode.Kind == entity.OwnModule || mode.Kind == entity.AnyModule {
		m, ok := player.Command()
		if !ok {
			m = player.Modules[b.rng.IntN(len(player.Modules))]
		}
		return &entity.TargetData{Kind: mode.Kind, Ship: player, Module: m}
	}

	if len(enemies) == 0 {
		return nil
	}
	enemy := enemies[b.rng.IntN(len(enemies))]

	switch mode.Kind {
	case entity.TargetShip:
		return &entity.TargetData{Kind: entity.TargetShip, Ship: enemy}
	case entity.TargetModule:
		return &entity.TargetData{Kind: entity.TargetModule, Ship: enemy, Module: b.victim(enemy)}
	case entity.Beam:
		// Sweep across the whole hull at two random heights.
		h := float64(enemy.Height)
		return &entity.TargetData{
			Kind:  entity.Beam,
			Ship:  enemy,
			Start: physics.Vector2D{X: 0, Y: b.rng.Float64() * h},
			End:   physics.Vector2D{X: float64(enemy.Width), Y: b.rng.Float64() * h},
		}
	}
	return nil
}

func (b *BotPlanner) victim(enemy *entity.Ship) entity.Module {
	if b.behavior == BehaviorAggressor {
		if cmd, ok := enemy.Command(); ok && !cmd.Base().Destroyed() {
			return cmd
		}
	}
	return enemy.Modules[b.rng.IntN(len(enemy.Modules))]
}
