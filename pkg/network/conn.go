// Package network carries battle packets between clients and the server.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

var (
	// ErrNoPacket is returned by TryReceive when nothing is queued.
	ErrNoPacket = errors.New("no packet available")
	// ErrClosed is returned once the peer or the local side closed the connection.
	ErrClosed = errors.New("connection closed")
)

// Conn is a bidirectional packet stream. Send may be called from several
// goroutines; the receive methods are meant for a single consumer.
type Conn interface {
	// Send writes one packet, honouring the context deadline.
	Send(ctx context.Context, p *protocol.OutPacket) error
	// Receive blocks until a packet arrives, the context ends or the
	// connection fails.
	Receive(ctx context.Context) (*protocol.InPacket, error)
	// TryReceive returns a queued packet or ErrNoPacket without blocking.
	TryReceive() (*protocol.InPacket, error)
	RemoteAddr() string
	Close() error
}

// PayloadFilter inspects every received payload before it is queued. A
// non-nil error terminates the connection.
type PayloadFilter func(payload []byte) error

// Options tune a packet connection.
type Options struct {
	// ReadTimeout closes the connection when nothing arrives for this long.
	// Zero disables it.
	ReadTimeout time.Duration
	// WriteTimeout bounds a Send whose context has no deadline.
	WriteTimeout time.Duration
	// Filter, when set, screens incoming payloads.
	Filter PayloadFilter
}

const receiveQueue = 32

// transport moves whole payloads over a concrete medium.
type transport interface {
	readPayload(idle time.Duration) ([]byte, error)
	writePayload(deadline time.Time, payload []byte) error
	remoteAddr() string
	close() error
}

// packetConn turns a transport into a Conn. A reader goroutine queues
// incoming payloads; the first read error ends the stream.
type packetConn struct {
	t        transport
	opts     Options
	incoming chan []byte
	closed   chan struct{}
	readErr  error

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newPacketConn(t transport, opts Options) *packetConn {
	c := &packetConn{
		t:        t,
		opts:     opts,
		incoming: make(chan []byte, receiveQueue),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *packetConn) readLoop() {
	defer close(c.incoming)
	for {
		payload, err := c.t.readPayload(c.opts.ReadTimeout)
		if err == nil && c.opts.Filter != nil {
			err = c.opts.Filter(payload)
		}
		if err != nil {
			c.readErr = c.classify(err)
			c.t.close()
			return
		}
		select {
		case c.incoming <- payload:
		case <-c.closed:
			c.readErr = ErrClosed
			return
		}
	}
}

func (c *packetConn) classify(err error) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

func (c *packetConn) Send(ctx context.Context, p *protocol.OutPacket) error {
	if err := p.Err(); err != nil {
		return fmt.Errorf("encode %d packet: %w", p.ID(), err)
	}
	select {
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.t.writePayload(deadline, p.Bytes()); err != nil {
		return c.classify(err)
	}
	return nil
}

func (c *packetConn) Receive(ctx context.Context) (*protocol.InPacket, error) {
	select {
	case payload, ok := <-c.incoming:
		return c.parse(payload, ok)
	default:
	}
	select {
	case payload, ok := <-c.incoming:
		return c.parse(payload, ok)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *packetConn) TryReceive() (*protocol.InPacket, error) {
	select {
	case payload, ok := <-c.incoming:
		return c.parse(payload, ok)
	default:
		return nil, ErrNoPacket
	}
}

func (c *packetConn) parse(payload []byte, ok bool) (*protocol.InPacket, error) {
	if !ok {
		return nil, c.readErr
	}
	return protocol.ParseInPacket(payload)
}

func (c *packetConn) RemoteAddr() string { return c.t.remoteAddr() }

func (c *packetConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.t.close()
	})
	return err
}
