// Package entity holds the battle data model: ships, their module grid and
// the behavior contract every module variant implements.
//
// Ships and modules are plain pointers owned by a single goroutine (the
// server's battle loop or the client's phase driver). No locking happens at
// this level; anything crossing goroutines goes through packets.
package entity

import "fmt"

// ShipID identifies a ship for its whole lifetime. The server assigns it.
type ShipID uint64

// ModuleIndex is the position of a module in its ship's sequence and the only
// form in which a module ever crosses the wire.
type ModuleIndex uint32

// SectorID identifies a map sector a ship can jump towards.
type SectorID uint32

// ClientID identifies a connected player.
type ClientID uint64

// SectorData describes a map sector offered to players.
type SectorData struct {
	ID   SectorID `msgpack:"id" json:"id"`
	Name string   `msgpack:"name" json:"name"`
	X    float64  `msgpack:"x" json:"x"`
	Y    float64  `msgpack:"y" json:"y"`
}

// ModuleType tags a module variant in ship snapshots.
type ModuleType uint8

// Module variants
const (
	TypeCommand ModuleType = iota + 1
	TypeEngine
	TypeSolar
	TypeShield
	TypeProjectileWeapon
	TypeBeamWeapon
)

func (t ModuleType) String() string {
	switch t {
	case TypeCommand:
		return "command"
	case TypeEngine:
		return "engine"
	case TypeSolar:
		return "solar"
	case TypeShield:
		return "shield"
	case TypeProjectileWeapon:
		return "projectile_weapon"
	case TypeBeamWeapon:
		return "beam_weapon"
	default:
		return fmt.Sprintf("ModuleType(%d)", uint8(t))
	}
}
