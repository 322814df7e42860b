package entity

import (
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/physics"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// CellSize is the render size of one grid cell, used for position hints.
const CellSize = 48

// Module is the capability set shared by every module variant.
type Module interface {
	Base() *ModuleBase
	Type() ModuleType

	// ServerPreprocess runs on the authoritative side once plans are applied,
	// before results are written.
	ServerPreprocess(state *ShipState, rng *rand.Rand)
	// BeforeSimulation registers tick-indexed effects for the replay of the
	// module's current results. It must not mutate ship state directly.
	BeforeSimulation(ship *Ship, events sim.EventAdder)
	// AfterSimulation finalizes state once every tick of a turn has run.
	AfterSimulation(state *ShipState)

	WritePlans(p *protocol.OutPacket)
	ReadPlans(r Resolver, p *protocol.InPacket) error
	WriteResults(p *protocol.OutPacket)
	ReadResults(p *protocol.InPacket) error

	// OnActivated and OnDeactivated apply the module's resource delta on a
	// power-state transition.
	OnActivated(state *ShipState, modules []Module)
	OnDeactivated(state *ShipState, modules []Module)

	// TargetMode reports the kind of target the module needs during planning.
	TargetMode() (TargetMode, bool)
}

// ModuleBase is the placement and power bookkeeping embedded in every
// variant. Its methods are the no-op defaults of the Module contract.
type ModuleBase struct {
	Index  ModuleIndex
	X      int
	Y      int
	Width  int
	Height int

	// PowerCost is drawn from the ship budget while the module is active.
	PowerCost int
	MinHP     int
	MaxHP     int
	HP        int

	// Target is the planned target for this turn, if the module takes one.
	Target *TargetData

	active bool
}

// NewModuleBase returns a base at full health.
func NewModuleBase(width, height, powerCost, minHP, maxHP int) ModuleBase {
	return ModuleBase{
		Width:     width,
		Height:    height,
		PowerCost: powerCost,
		MinHP:     minHP,
		MaxHP:     maxHP,
		HP:        maxHP,
	}
}

func (b *ModuleBase) Base() *ModuleBase { return b }

func (b *ModuleBase) IsActive() bool { return b.active }

// Functional reports whether the module has enough health to be powered.
func (b *ModuleBase) Functional() bool { return b.HP >= b.MinHP }

// Destroyed reports whether the module has no health left.
func (b *ModuleBase) Destroyed() bool { return b.HP <= 0 }

// Footprint returns the grid cells the module occupies.
func (b *ModuleBase) Footprint() physics.Rect {
	return physics.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// RenderPosition is the pixel position hint for the module's top-left corner.
func (b *ModuleBase) RenderPosition() physics.Vector2D {
	return physics.Vector2D{X: float64(b.X * CellSize), Y: float64(b.Y * CellSize)}
}

// Center returns the module's center in grid units, as used by beams.
func (b *ModuleBase) Center() physics.Vector2D {
	return physics.Vector2D{
		X: float64(b.X) + float64(b.Width)/2,
		Y: float64(b.Y) + float64(b.Height)/2,
	}
}

func (b *ModuleBase) ServerPreprocess(*ShipState, *rand.Rand) {}
func (b *ModuleBase) BeforeSimulation(*Ship, sim.EventAdder) {}
func (b *ModuleBase) AfterSimulation(*ShipState) {}
func (b *ModuleBase) WritePlans(*protocol.OutPacket) {}
func (b *ModuleBase) ReadPlans(Resolver, *protocol.InPacket) error { return nil }
func (b *ModuleBase) WriteResults(*protocol.OutPacket) {}
func (b *ModuleBase) ReadResults(*protocol.InPacket) error { return nil }
func (b *ModuleBase) OnActivated(*ShipState, []Module) {}
func (b *ModuleBase) OnDeactivated(*ShipState, []Module) {}
func (b *ModuleBase) TargetMode() (TargetMode, bool) { return TargetMode{}, false }

// WriteTargetPlan writes the module's planned target, if any, in wire form.
func (b *ModuleBase) WriteTargetPlan(p *protocol.OutPacket) {
	if b.Target == nil {
		p.WriteBool(false)
		return
	}
	p.WriteBool(true)
	WriteNetworkTarget(p, FromTargetData(*b.Target))
}

// ReadTargetPlan replaces the planned target with one read from p.
func (b *ModuleBase) ReadTargetPlan(r Resolver, p *protocol.InPacket) error {
	b.Target = nil
	if !p.ReadBool() {
		return p.Err()
	}
	nt := ReadNetworkTarget(p)
	if err := p.Err(); err != nil {
		return err
	}
	td, err := nt.ToTargetData(r)
	if err != nil {
		return err
	}
	b.Target = &td
	return nil
}
