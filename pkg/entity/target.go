package entity

import (
	"fmt"

	"github.com/opd-ai/go-shipbattle/pkg/physics"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// TargetKind enumerates the shapes a target selection can take.
type TargetKind uint8

const (
	TargetShip TargetKind = iota + 1
	TargetModule
	OwnModule
	AnyModule
	Beam
)

func (k TargetKind) String() string {
	switch k {
	case TargetShip:
		return "target_ship"
	case TargetModule:
		return "target_module"
	case OwnModule:
		return "own_module"
	case AnyModule:
		return "any_module"
	case Beam:
		return "beam"
	default:
		return fmt.Sprintf("TargetKind(%d)", uint8(k))
	}
}

func (k TargetKind) hasModule() bool {
	return k == TargetModule || k == OwnModule || k == AnyModule
}

// TargetMode is what a module asks for during planning. BeamCount is only
// meaningful for Beam.
type TargetMode struct {
	Kind      TargetKind
	BeamCount uint8
}

// Accepts reports whether t is a legal selection for this mode on a module
// owned by owner.
func (m TargetMode) Accepts(owner *Ship, t *TargetData) bool {
	if t == nil || t.Ship == nil {
		return false
	}
	switch m.Kind {
	case TargetShip:
		return t.Kind == TargetShip && t.Ship != owner
	case TargetModule:
		return t.Kind == TargetModule && t.Ship != owner && t.Module != nil
	case OwnModule:
		return t.Kind == OwnModule && t.Ship == owner && t.Module != nil
	case AnyModule:
		return t.Kind == AnyModule && t.Module != nil
	case Beam:
		return t.Kind == Beam && t.Ship != owner
	default:
		return false
	}
}

// TargetData is a planning-time selection holding live references. It never
// leaves the process that built it.
type TargetData struct {
	Kind   TargetKind
	Ship   *Ship
	Module Module
	Start  physics.Vector2D
	End    physics.Vector2D
}

// NetworkTargetData mirrors TargetData with identifiers in place of references.
type NetworkTargetData struct {
	Kind   TargetKind
	Ship   ShipID
	Module ModuleIndex
	Start  physics.Vector2D
	End    physics.Vector2D
}

// Resolver looks ships up by id.
type Resolver interface {
	Ship(id ShipID) (*Ship, bool)
}

// FromTargetData strips live references down to identifiers. Beam endpoints
// are carried verbatim.
func FromTargetData(t TargetData) NetworkTargetData {
	nt := NetworkTargetData{Kind: t.Kind}
	if t.Ship != nil {
		nt.Ship = t.Ship.ID
	}
	if t.Kind.hasModule() && t.Module != nil {
		nt.Module = t.Module.Base().Index
	}
	if t.Kind == Beam {
		nt.Start, nt.End = t.Start, t.End
	}
	return nt
}

// ToTargetData resolves identifiers against r. A missing ship or module is a
// *ResolutionError, never a placeholder.
func (nt NetworkTargetData) ToTargetData(r Resolver) (TargetData, error) {
	ship, ok := r.Ship(nt.Ship)
	if !ok {
		return TargetData{}, &ResolutionError{Ship: nt.Ship, Err: ErrUnknownShip}
	}

	td := TargetData{Kind: nt.Kind, Ship: ship}
	switch nt.Kind {
	case TargetShip:
	case TargetModule, OwnModule, AnyModule:
		m, ok := ship.Module(nt.Module)
		if !ok {
			return TargetData{}, &ResolutionError{
				Ship: nt.Ship, Module: nt.Module, HasModule: true, Err: ErrUnknownModule,
			}
		}
		td.Module = m
	case Beam:
		td.Start, td.End = nt.Start, nt.End
	default:
		return TargetData{}, fmt.Errorf("%w: target kind %d", protocol.ErrMalformedPacket, nt.Kind)
	}
	return td, nil
}

// WriteNetworkTarget encodes nt onto p.
func WriteNetworkTarget(p *protocol.OutPacket, nt NetworkTargetData) {
	p.WriteU8(uint8(nt.Kind))
	p.WriteU64(uint64(nt.Ship))
	switch {
	case nt.Kind.hasModule():
		p.WriteU32(uint32(nt.Module))
	case nt.Kind == Beam:
		p.WriteF64(nt.Start.X)
		p.WriteF64(nt.Start.Y)
		p.WriteF64(nt.End.X)
		p.WriteF64(nt.End.Y)
	}
}

// ReadNetworkTarget decodes a target written by WriteNetworkTarget. Errors are
// recorded on p.
func ReadNetworkTarget(p *protocol.InPacket) NetworkTargetData {
	nt := NetworkTargetData{
		Kind: TargetKind(p.ReadU8()),
		Ship: ShipID(p.ReadU64()),
	}
	switch {
	case nt.Kind.hasModule():
		nt.Module = ModuleIndex(p.ReadU32())
	case nt.Kind == Beam:
		nt.Start = physics.Vector2D{X: p.ReadF64(), Y: p.ReadF64()}
		nt.End = physics.Vector2D{X: p.ReadF64(), Y: p.ReadF64()}
	case nt.Kind == TargetShip:
	default:
		p.Fail(fmt.Errorf("%w: target kind %d", protocol.ErrMalformedPacket, nt.Kind))
	}
	return nt
}
