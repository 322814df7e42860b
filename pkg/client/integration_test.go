package client

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/engine"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/network"
)

// Plays real-time turns against a live server until the bot jumps out.
func TestDriver_AgainstServer(t *testing.T) {
	if testing.Short() {
		t.Skip("runs several real-time turns")
	}

	sectors := []entity.SectorData{{ID: 1, Name: "Kepler Reach"}}
	serverCfg := config.ServerConfig{
		Address:          "127.0.0.1:0",
		MaxClients:       4,
		ReadTimeout:      time.Minute,
		WriteTimeout:     time.Second,
		PlanTimeout:      4 * time.Second,
		ShipLevel:        2,
		Seed:             99,
		PacketsPerSecond: 20,
		PacketBurst:      10,
	}
	b, err := engine.NewBattle(serverCfg, sectors, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	go b.Run(ctx)

	server := network.NewGameServer(serverCfg, b, logging.Discard())
	require.NoError(t, server.Start())
	defer server.Stop()

	gc := network.NewGameClient(config.ClientConfig{
		ServerAddress:  server.ListenerAddress(),
		Transport:      "tcp",
		PlayerName:     "runner",
		ConnectTimeout: 2 * time.Second,
	}, config.CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MaxConsecutiveFails: 3}, logging.Discard())
	welcome, err := gc.Connect(ctx)
	require.NoError(t, err)
	defer gc.Close()

	bot := NewBotPlanner(BehaviorRunner, welcome.Sectors, rand.New(rand.NewPCG(1, 1)))
	bot.jumpAfter = 1
	d := NewDriver(gc.Conn(), welcome, Options{Planner: bot, FrameInterval: 10 * time.Millisecond})

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, Done, d.Phase())
	assert.True(t, d.Player().State.Jumping)
	assert.Equal(t, uint64(1), d.Turn())
	_, stillThere := d.Ships().Ship(welcome.ShipID)
	assert.False(t, stillThere)
}
