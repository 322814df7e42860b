package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"

	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/validation"
)

// ErrServerFull is returned by a Lobby that has no free seat.
var ErrServerFull = errors.New("server full")

// Lobby admits players into a battle. Join must send the Welcome on conn
// before any other packet and takes ownership of conn on success.
type Lobby interface {
	Join(ctx context.Context, id entity.ClientID, name string, conn Conn) error
}

// GameServer accepts TCP and WebSocket clients, performs the handshake and
// hands admitted connections to the lobby.
type GameServer struct {
	cfg       config.ServerConfig
	lobby     Lobby
	validator *validation.PacketValidator
	logger    *logging.Logger

	listener net.Listener
	http     *http.Server
	wsAddr   string

	clients     map[entity.ClientID]*trackedConn
	clientsLock deadlock.RWMutex
	nextID      atomic.Uint64
	running     atomic.Bool
	wg          sync.WaitGroup
}

// NewGameServer creates a server for lobby.
func NewGameServer(cfg config.ServerConfig, lobby Lobby, logger *logging.Logger) *GameServer {
	return &GameServer{
		cfg:       cfg,
		lobby:     lobby,
		validator: validation.NewPacketValidator(cfg.PacketsPerSecond, cfg.PacketBurst),
		logger:    logger,
		clients:   make(map[entity.ClientID]*trackedConn),
	}
}

// Start binds the configured listeners and begins accepting clients.
func (s *GameServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptConnections()

	if s.cfg.WebSocketAddress != "" {
		wsListener, err := net.Listen("tcp", s.cfg.WebSocketAddress)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to start websocket listener: %w", err)
		}
		s.wsAddr = wsListener.Addr().String()
		mux := http.NewServeMux()
		mux.HandleFunc(WebSocketPath, s.handleWebSocket)
		s.http = &http.Server{Handler: mux}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.http.Serve(wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error(context.Background(), "websocket server stopped", err)
			}
		}()
	}

	s.logger.Info(context.Background(), "battle server started",
		"address", s.ListenerAddress(),
		"websocket_address", s.wsAddr,
	)
	return nil
}

// Stop closes the listeners and every client connection.
func (s *GameServer) Stop() {
	if !s.running.Swap(false) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.http != nil {
		s.http.Close()
	}

	s.clientsLock.Lock()
	conns := make([]*trackedConn, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	s.clientsLock.Unlock()
	for _, c := range conns {
		c.Close()
	}

	s.wg.Wait()
	s.validator.Close()
	s.logger.Info(context.Background(), "battle server stopped")
}

// ListenerAddress returns the bound TCP address, or "" when not running.
func (s *GameServer) ListenerAddress() string {
	if !s.running.Load() || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WebSocketAddress returns the bound WebSocket address, if any.
func (s *GameServer) WebSocketAddress() string { return s.wsAddr }

// ClientCount returns the number of live client connections.
func (s *GameServer) ClientCount() int {
	s.clientsLock.RLock()
	defer s.clientsLock.RUnlock()
	return len(s.clients)
}

func (s *GameServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				s.logger.Error(context.Background(), "accept failed", err)
				continue
			}
			return
		}

		if s.full() {
			s.logger.Warn(context.Background(), "rejecting connection, server full", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		}

		id := s.allocateID()
		packetConn := NewStreamConn(conn, s.connOptions(id))
		s.wg.Add(1)
		go s.handleConnection(id, packetConn)
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.full() {
		http.Error(w, ErrServerFull.Error(), http.StatusServiceUnavailable)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	id := s.allocateID()
	s.wg.Add(1)
	go s.handleConnection(id, NewWebSocketConn(ws, s.connOptions(id)))
}

func (s *GameServer) full() bool {
	return s.cfg.MaxClients > 0 && s.ClientCount() >= s.cfg.MaxClients
}

func (s *GameServer) allocateID() entity.ClientID {
	return entity.ClientID(s.nextID.Add(1))
}

func (s *GameServer) connOptions(id entity.ClientID) Options {
	return Options{
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		Filter: func(payload []byte) error {
			return s.validator.ValidatePacket(payload, id)
		},
	}
}

// handleConnection reads the Join and passes the connection to the lobby.
func (s *GameServer) handleConnection(id entity.ClientID, conn Conn) {
	defer s.wg.Done()

	tracked := &trackedConn{Conn: conn, id: id, server: s}
	s.clientsLock.Lock()
	s.clients[id] = tracked
	s.clientsLock.Unlock()

	ctx := logging.WithCorrelationID(context.Background(), "")
	if s.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
	}

	name, err := s.readJoin(ctx, tracked)
	if err != nil {
		s.logger.Warn(ctx, "handshake failed", "client_id", id, "remote", conn.RemoteAddr(), "error", err)
		tracked.Close()
		return
	}

	if err := s.lobby.Join(ctx, id, name, tracked); err != nil {
		s.logger.Warn(ctx, "join rejected", "client_id", id, "player", name, "error", err)
		tracked.Close()
		return
	}
	s.logger.Info(ctx, "client joined", "client_id", id, "player", name, "remote", conn.RemoteAddr())
}

func (s *GameServer) readJoin(ctx context.Context, conn Conn) (string, error) {
	p, err := conn.Receive(ctx)
	if err != nil {
		return "", err
	}
	name, err := ReadJoin(p)
	if err != nil {
		return "", err
	}
	return validation.ValidatePlayerName(name)
}

func (s *GameServer) release(id entity.ClientID) {
	s.clientsLock.Lock()
	delete(s.clients, id)
	s.clientsLock.Unlock()
	s.validator.Forget(id)
}

// trackedConn unregisters itself from the server when closed.
type trackedConn struct {
	Conn
	id     entity.ClientID
	server *GameServer
	once   sync.Once
}

func (t *trackedConn) Close() error {
	err := t.Conn.Close()
	t.once.Do(func() { t.server.release(t.id) })
	return err
}
