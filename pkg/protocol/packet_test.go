package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRecord struct {
	Name    string   `msgpack:"name"`
	Sectors []uint32 `msgpack:"sectors"`
}

func TestPacket_PrimitivesInOrder(t *testing.T) {
	out := NewServerPacket(ServerPlan)
	out.WriteBool(true)
	out.WriteU8(7)
	out.WriteU16(513)
	out.WriteU32(70000)
	out.WriteU64(1 << 40)
	out.WriteI32(-12)
	out.WriteF64(2.5)
	out.WriteString("nebula")
	out.WriteValue(sampleRecord{Name: "alpha", Sectors: []uint32{1, 2}})
	require.NoError(t, out.Err())

	in, err := ParseInPacket(out.Bytes())
	require.NoError(t, err)
	require.NoError(t, in.ExpectServer(ServerPlan))

	assert.True(t, in.ReadBool())
	assert.Equal(t, uint8(7), in.ReadU8())
	assert.Equal(t, uint16(513), in.ReadU16())
	assert.Equal(t, uint32(70000), in.ReadU32())
	assert.Equal(t, uint64(1<<40), in.ReadU64())
	assert.Equal(t, int32(-12), in.ReadI32())
	assert.Equal(t, 2.5, in.ReadF64())
	assert.Equal(t, "nebula", in.ReadString())

	var rec sampleRecord
	in.ReadValue(&rec)
	require.NoError(t, in.Err())
	assert.Equal(t, "alpha", rec.Name)
	assert.Equal(t, []uint32{1, 2}, rec.Sectors)
	assert.Zero(t, in.Remaining())
}

func TestPacket_UnexpectedID(t *testing.T) {
	in, err := ParseInPacket(NewClientPacket(ClientNewShips).Bytes())
	require.NoError(t, err)

	err = in.ExpectClient(ClientSimResults)
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, uint8(ClientNewShips), perr.Got)
	assert.Contains(t, err.Error(), "SimResults")
}

func TestPacket_TruncatedPayload(t *testing.T) {
	out := NewClientPacket(ClientSimResults)
	out.WriteU16(3)

	in, err := ParseInPacket(out.Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint32(0), in.ReadU32())
	assert.ErrorIs(t, in.Err(), ErrMalformedPacket)

	// Errors are sticky; subsequent reads stay zero.
	assert.Equal(t, uint8(0), in.ReadU8())
	assert.ErrorIs(t, in.Err(), ErrMalformedPacket)
}

func TestPacket_InvalidBool(t *testing.T) {
	out := NewClientPacket(ClientSimResults)
	out.WriteU8(9)
	in, err := ParseInPacket(out.Bytes())
	require.NoError(t, err)

	in.ReadBool()
	assert.ErrorIs(t, in.Err(), ErrMalformedPacket)
}

func TestParseInPacket_Empty(t *testing.T) {
	_, err := ParseInPacket(nil)
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	first := NewClientPacket(ClientWelcome)
	first.WriteU32(42)
	require.NoError(t, WriteFrame(&buf, first.Bytes()))
	require.NoError(t, WriteFrame(&buf, NewClientPacket(ClientNewShips).Bytes()))

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes(), payload)

	payload, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{uint8(ClientNewShips)}, payload)
}

func TestReadFrame_RejectsZeroLength(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}
