// Package module implements the built-in module variants.
package module

import (
	"errors"
	"fmt"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// ErrUnknownType is returned by New for an unrecognised variant tag.
var ErrUnknownType = errors.New("unknown module type")

// New builds a fresh module of the given variant at full health.
func New(t entity.ModuleType) (entity.Module, error) {
	switch t {
	case entity.TypeCommand:
		return NewCommand(), nil
	case entity.TypeEngine:
		return NewEngine(), nil
	case entity.TypeSolar:
		return NewSolar(), nil
	case entity.TypeShield:
		return NewShield(), nil
	case entity.TypeProjectileWeapon:
		return NewProjectileWeapon(), nil
	case entity.TypeBeamWeapon:
		return NewBeamWeapon(), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
}

// NewAt builds a module of type t placed at grid cell (x, y).
func NewAt(t entity.ModuleType, x, y int) (entity.Module, error) {
	m, err := New(t)
	if err != nil {
		return nil, err
	}
	m.Base().X, m.Base().Y = x, y
	return m, nil
}

// Command anchors the ship; a ship whose command module is destroyed is dead.
type Command struct {
	entity.ModuleBase
}

func NewCommand() *Command {
	return &Command{ModuleBase: entity.NewModuleBase(1, 2, 1, 2, 4)}
}

func (m *Command) Type() entity.ModuleType { return entity.TypeCommand }

// Engine provides one unit of thrust while powered.
type Engine struct {
	entity.ModuleBase
}

func NewEngine() *Engine {
	return &Engine{ModuleBase: entity.NewModuleBase(1, 1, 2, 2, 3)}
}

func (m *Engine) Type() entity.ModuleType { return entity.TypeEngine }

func (m *Engine) OnActivated(state *entity.ShipState, _ []entity.Module) {
	state.Thrust++
}

func (m *Engine) OnDeactivated(state *entity.ShipState, _ []entity.Module) {
	state.Thrust--
}

// SolarOutput is the power a running solar panel adds to the budget.
const SolarOutput = 5

// Solar produces power while active.
type Solar struct {
	entity.ModuleBase
}

func NewSolar() *Solar {
	return &Solar{ModuleBase: entity.NewModuleBase(1, 1, 0, 2, 3)}
}

func (m *Solar) Type() entity.ModuleType { return entity.TypeSolar }

func (m *Solar) OnActivated(state *entity.ShipState, _ []entity.Module) {
	entity.AddPower(state, SolarOutput)
}

// OnDeactivated withdraws the panel's output, cascading into consumers when
// the budget no longer balances.
func (m *Solar) OnDeactivated(state *entity.ShipState, modules []entity.Module) {
	entity.RemovePower(state, modules, SolarOutput)
}
