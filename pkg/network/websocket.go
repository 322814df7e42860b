package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// WebSocketPath is where the server accepts WebSocket clients.
const WebSocketPath = "/battle"

// wsTransport carries one payload per binary WebSocket message.
type wsTransport struct {
	conn *websocket.Conn
}

func (w *wsTransport) readPayload(idle time.Duration) ([]byte, error) {
	if idle > 0 {
		w.conn.SetReadDeadline(time.Now().Add(idle))
	}
	kind, payload, err := w.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil, err
	}
	if kind != websocket.BinaryMessage {
		return nil, fmt.Errorf("%w: websocket message type %d", protocol.ErrMalformedPacket, kind)
	}
	return payload, nil
}

func (w *wsTransport) writePayload(deadline time.Time, payload []byte) error {
	w.conn.SetWriteDeadline(deadline)
	return w.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (w *wsTransport) remoteAddr() string { return w.conn.RemoteAddr().String() }

func (w *wsTransport) close() error { return w.conn.Close() }

// NewWebSocketConn wraps an established WebSocket.
func NewWebSocketConn(conn *websocket.Conn, opts Options) Conn {
	conn.SetReadLimit(protocol.MaxFrameSize)
	return newPacketConn(&wsTransport{conn: conn}, opts)
}

// DialWebSocket connects to a battle server's WebSocket endpoint, e.g.
// ws://host:port/battle.
func DialWebSocket(ctx context.Context, url string, opts Options) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return NewWebSocketConn(conn, opts), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}
