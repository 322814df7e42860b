package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

func planPacket(values ...uint32) *protocol.OutPacket {
	p := protocol.NewServerPacket(protocol.ServerPlan)
	for _, v := range values {
		p.WriteU32(v)
	}
	return p
}

func TestPipe_SendReceive(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send(ctx, planPacket(7, 9)))

	p, err := b.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, p.ExpectServer(protocol.ServerPlan))
	assert.Equal(t, uint32(7), p.ReadU32())
	assert.Equal(t, uint32(9), p.ReadU32())
	assert.NoError(t, p.Err())
}

func TestPacketConn_TryReceive(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	_, err := b.TryReceive()
	assert.ErrorIs(t, err, ErrNoPacket)

	require.NoError(t, a.Send(context.Background(), planPacket(1)))

	var p *protocol.InPacket
	require.Eventually(t, func() bool {
		p, err = b.TryReceive()
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint8(protocol.ServerPlan), p.ID())
}

func TestPacketConn_PreservesOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		for i := range 10 {
			a.Send(ctx, planPacket(uint32(i)))
		}
	}()

	for i := range 10 {
		p, err := b.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), p.ReadU32())
	}
}

func TestPacketConn_ReceiveHonoursContext(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacketConn_PeerClose(t *testing.T) {
	a, b := Pipe()
	defer b.Close()

	require.NoError(t, a.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, a.Send(ctx, planPacket()), ErrClosed)
}

func TestPacketConn_FilterRejects(t *testing.T) {
	rawA, rawB := net.Pipe()
	rejected := errors.New("rejected")
	a := NewStreamConn(rawA, Options{})
	b := NewStreamConn(rawB, Options{Filter: func(payload []byte) error {
		if payload[0] != byte(protocol.ServerJoin) {
			return rejected
		}
		return nil
	}})
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Send(ctx, planPacket()))
	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, rejected)
}

func TestPacketConn_SendReportsEncodingError(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	p := protocol.NewServerPacket(protocol.ServerJoin)
	p.WriteBytes(make([]byte, protocol.MaxStringLength+1))
	assert.ErrorIs(t, a.Send(context.Background(), p), protocol.ErrMalformedPacket)
}

func TestHandshakePackets(t *testing.T) {
	join, err := protocol.ParseInPacket(NewJoinPacket("Ada").Bytes())
	require.NoError(t, err)
	name, err := ReadJoin(join)
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	want := Welcome{ClientID: 3, ShipID: 11}
	in, err := protocol.ParseInPacket(NewWelcomePacket(want).Bytes())
	require.NoError(t, err)
	got, err := ReadWelcome(in)
	require.NoError(t, err)
	assert.Equal(t, want.ClientID, got.ClientID)
	assert.Equal(t, want.ShipID, got.ShipID)
	assert.Empty(t, got.Sectors)

	wrong, err := protocol.ParseInPacket(NewJoinPacket("x").Bytes())
	require.NoError(t, err)
	_, err = ReadWelcome(wrong)
	var protoErr *protocol.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}
