package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
)

// GameClient joins a battle server and hands the resulting connection to the
// phase driver.
type GameClient struct {
	cfg     config.ClientConfig
	service *NetworkService
	logger  *logging.Logger
	opts    Options

	conn    Conn
	welcome Welcome
}

// NewGameClient creates a client that is not yet connected.
func NewGameClient(cfg config.ClientConfig, breaker config.CircuitBreakerConfig, logger *logging.Logger) *GameClient {
	return &GameClient{
		cfg:     cfg,
		service: NewNetworkService(breaker, logger),
		logger:  logger,
	}
}

// Connect dials the server and performs the Join/Welcome handshake, retrying
// through the circuit breaker.
func (c *GameClient) Connect(ctx context.Context) (Welcome, error) {
	err := c.service.ExecuteWithRetry(ctx, func() error {
		return c.connectOnce(ctx)
	})
	if err != nil {
		return Welcome{}, err
	}

	c.logger.Info(ctx, "joined battle",
		"server", c.cfg.ServerAddress,
		"client_id", c.welcome.ClientID,
		"ship_id", c.welcome.ShipID,
		"sectors", len(c.welcome.Sectors),
	)
	return c.welcome, nil
}

func (c *GameClient) connectOnce(ctx context.Context) error {
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	welcome, err := Handshake(ctx, conn, c.cfg.PlayerName)
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.welcome = welcome
	return nil
}

func (c *GameClient) dial(ctx context.Context) (Conn, error) {
	switch c.cfg.Transport {
	case "ws":
		url := c.cfg.ServerAddress
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			url = "ws://" + url + WebSocketPath
		}
		return DialWebSocket(ctx, url, c.opts)
	case "", "tcp":
		return DialTCP(ctx, c.cfg.ServerAddress, c.opts)
	default:
		return nil, fmt.Errorf("unknown transport %q", c.cfg.Transport)
	}
}

// Handshake sends a Join on conn and waits for the Welcome.
func Handshake(ctx context.Context, conn Conn, name string) (Welcome, error) {
	if err := conn.Send(ctx, NewJoinPacket(name)); err != nil {
		return Welcome{}, fmt.Errorf("send join: %w", err)
	}
	p, err := conn.Receive(ctx)
	if err != nil {
		return Welcome{}, fmt.Errorf("await welcome: %w", err)
	}
	return ReadWelcome(p)
}

// Conn returns the connection established by Connect.
func (c *GameClient) Conn() Conn { return c.conn }

// Welcome returns what the server assigned on join.
func (c *GameClient) Welcome() Welcome { return c.welcome }

// Service exposes the circuit breaker for monitoring.
func (c *GameClient) Service() *NetworkService { return c.service }

// Close drops the connection.
func (c *GameClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
