package network

import (
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// Welcome is the server's answer to a Join.
type Welcome struct {
	ClientID entity.ClientID
	ShipID   entity.ShipID
	Sectors  []entity.SectorData
}

// NewJoinPacket asks the server for a seat in the battle.
func NewJoinPacket(name string) *protocol.OutPacket {
	p := protocol.NewServerPacket(protocol.ServerJoin)
	p.WriteString(name)
	return p
}

// ReadJoin decodes the player name of a Join packet.
func ReadJoin(p *protocol.InPacket) (string, error) {
	if err := p.ExpectServer(protocol.ServerJoin); err != nil {
		return "", err
	}
	name := p.ReadString()
	return name, p.Err()
}

// NewWelcomePacket encodes w.
func NewWelcomePacket(w Welcome) *protocol.OutPacket {
	p := protocol.NewClientPacket(protocol.ClientWelcome)
	p.WriteU64(uint64(w.ClientID))
	p.WriteU64(uint64(w.ShipID))
	p.WriteValue(w.Sectors)
	return p
}

// ReadWelcome decodes a Welcome packet.
func ReadWelcome(p *protocol.InPacket) (Welcome, error) {
	var w Welcome
	if err := p.ExpectClient(protocol.ClientWelcome); err != nil {
		return w, err
	}
	w.ClientID = entity.ClientID(p.ReadU64())
	w.ShipID = entity.ShipID(p.ReadU64())
	p.ReadValue(&w.Sectors)
	return w, p.Err()
}
