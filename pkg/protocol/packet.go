package protocol

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxStringLength bounds strings and byte blobs carried by a packet.
const MaxStringLength = math.MaxUint16

// OutPacket accumulates an outgoing payload. The first byte is the packet id;
// everything after it is written in call order, big endian.
type OutPacket struct {
	buf bytes.Buffer
	err error
}

// NewClientPacket starts a packet addressed to a client.
func NewClientPacket(id ClientPacketID) *OutPacket {
	return newOutPacket(uint8(id))
}

// NewServerPacket starts a packet addressed to the server.
func NewServerPacket(id ServerPacketID) *OutPacket {
	return newOutPacket(uint8(id))
}

func newOutPacket(id uint8) *OutPacket {
	p := &OutPacket{}
	p.buf.WriteByte(id)
	return p
}

// ID returns the packet identifier.
func (p *OutPacket) ID() uint8 {
	return p.buf.Bytes()[0]
}

// Bytes returns the encoded payload including the identifier.
func (p *OutPacket) Bytes() []byte {
	return p.buf.Bytes()
}

// Err returns the first encoding error, if any.
func (p *OutPacket) Err() error {
	return p.err
}

func (p *OutPacket) WriteU8(v uint8) { p.buf.WriteByte(v) }

func (p *OutPacket) WriteBool(v bool) {
	if v {
		p.WriteU8(1)
		return
	}
	p.WriteU8(0)
}

func (p *OutPacket) WriteU16(v uint16) {
	p.buf.Write(binary.BigEndian.AppendUint16(nil, v))
}

func (p *OutPacket) WriteU32(v uint32) {
	p.buf.Write(binary.BigEndian.AppendUint32(nil, v))
}

func (p *OutPacket) WriteU64(v uint64) {
	p.buf.Write(binary.BigEndian.AppendUint64(nil, v))
}

func (p *OutPacket) WriteI32(v int32) { p.WriteU32(uint32(v)) }

func (p *OutPacket) WriteF64(v float64) { p.WriteU64(math.Float64bits(v)) }

// WriteBytes writes a u16 length followed by the raw bytes.
func (p *OutPacket) WriteBytes(b []byte) {
	if len(b) > MaxStringLength {
		p.setErr(malformed("blob of %d bytes exceeds %d", len(b), MaxStringLength))
		return
	}
	p.WriteU16(uint16(len(b)))
	p.buf.Write(b)
}

func (p *OutPacket) WriteString(s string) { p.WriteBytes([]byte(s)) }

// WriteValue encodes a composite record with msgpack, length prefixed.
func (p *OutPacket) WriteValue(v any) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		p.setErr(err)
		return
	}
	p.WriteU32(uint32(len(b)))
	p.buf.Write(b)
}

func (p *OutPacket) setErr(err error) {
	if p.err == nil {
		p.err = err
	}
}

// InPacket decodes a payload produced by OutPacket. Reads past the end or of
// invalid data record a sticky error and return zero values; callers check Err
// once the record is complete.
type InPacket struct {
	id   uint8
	data []byte
	off  int
	err  error
}

// ParseInPacket splits the identifier off a received payload.
func ParseInPacket(payload []byte) (*InPacket, error) {
	if len(payload) == 0 {
		return nil, malformed("empty payload")
	}
	return &InPacket{id: payload[0], data: payload[1:]}, nil
}

// ID returns the packet identifier.
func (p *InPacket) ID() uint8 { return p.id }

// ExpectClient fails with a ProtocolError unless the packet carries id.
func (p *InPacket) ExpectClient(id ClientPacketID) error {
	if p.id != uint8(id) {
		return &ProtocolError{Expected: id, Got: p.id}
	}
	return nil
}

// ExpectServer fails with a ProtocolError unless the packet carries id.
func (p *InPacket) ExpectServer(id ServerPacketID) error {
	if p.id != uint8(id) {
		return &ProtocolError{Expected: id, Got: p.id}
	}
	return nil
}

// Err returns the first decoding error, if any.
func (p *InPacket) Err() error { return p.err }

// Remaining returns the number of unread bytes.
func (p *InPacket) Remaining() int { return len(p.data) - p.off }

// Fail records err as the packet's decoding error unless one is already set.
func (p *InPacket) Fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *InPacket) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.Remaining() < n {
		p.Fail(malformed("need %d bytes at offset %d, have %d", n, p.off, p.Remaining()))
		return nil
	}
	b := p.data[p.off : p.off+n]
	p.off += n
	return b
}

func (p *InPacket) ReadU8() uint8 {
	b := p.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (p *InPacket) ReadBool() bool {
	switch v := p.ReadU8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		p.Fail(malformed("invalid bool byte %d", v))
		return false
	}
}

func (p *InPacket) ReadU16() uint16 {
	b := p.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (p *InPacket) ReadU32() uint32 {
	b := p.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (p *InPacket) ReadU64() uint64 {
	b := p.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (p *InPacket) ReadI32() int32 { return int32(p.ReadU32()) }

func (p *InPacket) ReadF64() float64 { return math.Float64frombits(p.ReadU64()) }

func (p *InPacket) ReadBytes() []byte {
	n := p.ReadU16()
	b := p.take(int(n))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (p *InPacket) ReadString() string { return string(p.ReadBytes()) }

// ReadValue decodes a record written by OutPacket.WriteValue into v.
func (p *InPacket) ReadValue(v any) {
	n := p.ReadU32()
	b := p.take(int(n))
	if b == nil {
		return
	}
	if err := msgpack.Unmarshal(b, v); err != nil {
		p.Fail(malformed("record: %v", err))
	}
}
