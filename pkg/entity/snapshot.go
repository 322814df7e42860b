package entity

import "fmt"

// ShipSnapshot is the full wire description of a ship sent when it enters a
// client's battle.
type ShipSnapshot struct {
	ID      ShipID           `msgpack:"id" json:"id"`
	Name    string           `msgpack:"name" json:"name"`
	Modules []ModuleSnapshot `msgpack:"modules" json:"modules"`
}

// ModuleSnapshot is one module of a ShipSnapshot, in index order.
type ModuleSnapshot struct {
	Type   ModuleType `msgpack:"type" json:"type"`
	X      int        `msgpack:"x" json:"x"`
	Y      int        `msgpack:"y" json:"y"`
	HP     int        `msgpack:"hp" json:"hp"`
	Active bool       `msgpack:"active" json:"active"`
}

// ModuleFactory builds a fresh module of the given variant.
type ModuleFactory func(ModuleType) (Module, error)

// Snapshot captures the ship for transmission.
func (s *Ship) Snapshot() ShipSnapshot {
	snap := ShipSnapshot{ID: s.ID, Name: s.Name, Modules: make([]ModuleSnapshot, len(s.Modules))}
	for i, m := range s.Modules {
		b := m.Base()
		snap.Modules[i] = ModuleSnapshot{Type: m.Type(), X: b.X, Y: b.Y, HP: b.HP, Active: b.IsActive()}
	}
	return snap
}

// ShipFromSnapshot rebuilds a ship. Modules are placed in order and then the
// snapshot's power state is restored.
func ShipFromSnapshot(snap ShipSnapshot, newModule ModuleFactory) (*Ship, error) {
	ship := NewShip(snap.ID, snap.Name)
	active := make([]bool, len(snap.Modules))
	for i, ms := range snap.Modules {
		m, err := newModule(ms.Type)
		if err != nil {
			return nil, fmt.Errorf("ship %d module %d: %w", snap.ID, i, err)
		}
		b := m.Base()
		b.X, b.Y = ms.X, ms.Y
		b.HP = max(0, min(ms.HP, b.MaxHP))
		if err := ship.AddModule(m); err != nil {
			return nil, fmt.Errorf("ship %d module %d: %w", snap.ID, i, err)
		}
		active[i] = ms.Active
	}
	ship.RestorePowerState(active)
	ship.recomputeHP()
	return ship, nil
}
