// Package protocol implements the typed packet format exchanged between the
// battle server and its clients.
package protocol

import "fmt"

// ServerPacketID tags packets travelling from a client to the server.
type ServerPacketID uint8

// Packets accepted by the server
const (
	ServerJoin ServerPacketID = iota + 1
	ServerPlan
)

func (id ServerPacketID) String() string {
	switch id {
	case ServerJoin:
		return "Join"
	case ServerPlan:
		return "Plan"
	default:
		return fmt.Sprintf("ServerPacketID(%d)", uint8(id))
	}
}

// ClientPacketID tags packets travelling from the server to a client.
type ClientPacketID uint8

// Packets accepted by clients
const (
	ClientWelcome ClientPacketID = iota + 1
	ClientNewShips
	ClientSimResults
)

func (id ClientPacketID) String() string {
	switch id {
	case ClientWelcome:
		return "Welcome"
	case ClientNewShips:
		return "NewShips"
	case ClientSimResults:
		return "SimResults"
	default:
		return fmt.Sprintf("ClientPacketID(%d)", uint8(id))
	}
}
