package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// streamTransport frames payloads on a byte stream.
type streamTransport struct {
	conn net.Conn
}

func (s *streamTransport) readPayload(idle time.Duration) ([]byte, error) {
	if idle > 0 {
		s.conn.SetReadDeadline(time.Now().Add(idle))
	}
	return protocol.ReadFrame(s.conn)
}

func (s *streamTransport) writePayload(deadline time.Time, payload []byte) error {
	s.conn.SetWriteDeadline(deadline)
	return protocol.WriteFrame(s.conn, payload)
}

func (s *streamTransport) remoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *streamTransport) close() error { return s.conn.Close() }

// NewStreamConn wraps an established byte stream.
func NewStreamConn(conn net.Conn, opts Options) Conn {
	return newPacketConn(&streamTransport{conn: conn}, opts)
}

// DialTCP connects to a battle server over TCP.
func DialTCP(ctx context.Context, address string, opts Options) (Conn, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewStreamConn(conn, opts), nil
}

// Pipe returns two connected in-memory Conns.
func Pipe() (Conn, Conn) {
	a, b := net.Pipe()
	return NewStreamConn(a, Options{}), NewStreamConn(b, Options{})
}
