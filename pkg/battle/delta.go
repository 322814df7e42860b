package battle

import (
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// ShipDelta is the payload of a NewShips packet: ships entering the client's
// view of the battle and ids leaving it.
type ShipDelta struct {
	Added   []entity.ShipSnapshot `msgpack:"added"`
	Removed []entity.ShipID       `msgpack:"removed"`
}

// Empty reports whether the delta changes nothing.
func (d ShipDelta) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

// WriteShipDelta encodes d after the packet id.
func WriteShipDelta(p *protocol.OutPacket, d ShipDelta) {
	p.WriteValue(d.Added)
	p.WriteValue(d.Removed)
}

// ReadShipDelta decodes a delta written by WriteShipDelta.
func ReadShipDelta(p *protocol.InPacket) (ShipDelta, error) {
	var d ShipDelta
	p.ReadValue(&d.Added)
	p.ReadValue(&d.Removed)
	return d, p.Err()
}

// DeltaOutcome reports what ApplyShipDelta changed.
type DeltaOutcome struct {
	Added   []*entity.Ship
	Removed []entity.ShipID
	// Player is the replacement for the player's ship when it respawned.
	Player *entity.Ship
}

// ApplyShipDelta removes then adds ships. A snapshot carrying the player's
// ship id replaces the player's ship only when that ship has been destroyed;
// otherwise it is ignored. Any other snapshot is inserted.
func (c *Context) ApplyShipDelta(d ShipDelta, player entity.ShipID) (DeltaOutcome, error) {
	var out DeltaOutcome
	for _, id := range d.Removed {
		if _, ok := c.RemoveShip(id); ok {
			out.Removed = append(out.Removed, id)
		}
	}

	for _, snap := range d.Added {
		if snap.ID == player {
			if current, ok := c.ships[player]; ok && !current.Destroyed() {
				continue
			}
			ship, err := c.AddNetworkedShip(snap)
			if err != nil {
				return out, err
			}
			out.Player = ship
			continue
		}
		ship, err := c.AddNetworkedShip(snap)
		if err != nil {
			return out, err
		}
		out.Added = append(out.Added, ship)
	}
	return out, nil
}
