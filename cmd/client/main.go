// cmd/client/main.go
package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/client"
	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/event"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/network"
	"github.com/opd-ai/go-shipbattle/pkg/render"
)

// closer is a presenter that can be asked to end the battle.
type closer interface {
	client.Presenter
	RequestClose()
}

func main() {
	configPath := flag.String("config", "", "Path to a JSON configuration file")
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	playerName := flag.String("name", "", "Player name (overrides config)")
	transport := flag.String("transport", "", "Transport: 'tcp' or 'ws' (overrides config)")
	behaviorName := flag.String("behavior", "aggressor", "Bot behavior: aggressor, raider or runner")
	renderer := flag.String("renderer", "terminal", "Renderer type: 'terminal' or 'null'")
	flag.Parse()

	ctx := logging.WithCorrelationID(context.Background(), "")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewLogger().Error(ctx, "Failed to load configuration", err, "config_path", *configPath)
		os.Exit(1)
	}
	logger := logging.NewLoggerWithWriter(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	if *serverAddr != "" {
		cfg.Client.ServerAddress = *serverAddr
	}
	if *playerName != "" {
		cfg.Client.PlayerName = *playerName
	}
	if *transport != "" {
		cfg.Client.Transport = *transport
	}

	behavior, err := client.ParseBehavior(*behaviorName)
	if err != nil {
		logger.Error(ctx, "Invalid behavior", err)
		os.Exit(1)
	}

	var presenter closer
	switch *renderer {
	case "terminal":
		presenter = render.NewTerminalRenderer(os.Stdout, true)
	case "null":
		presenter = client.NewNullPresenter(logger)
	default:
		logger.Error(ctx, "Unknown renderer", nil, "renderer", *renderer)
		os.Exit(1)
	}

	gc := network.NewGameClient(cfg.Client, cfg.CircuitBreaker, logger)
	logger.Info(ctx, "Connecting to server", "address", cfg.Client.ServerAddress, "transport", cfg.Client.Transport)
	welcome, err := gc.Connect(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to connect to server", err)
		os.Exit(1)
	}
	defer gc.Close()

	bus := event.NewEventBus()
	bus.Subscribe(event.PlayerShipReplaced, func(e event.Event) {
		logger.Info(ctx, "Ship destroyed, respawned")
	})
	bus.Subscribe(event.BattleEnded, func(e event.Event) {
		logger.Info(ctx, "Battle over", "turn", e.(*event.TurnEvent).Turn)
	})

	frame := client.DefaultFrameInterval
	if cfg.Client.FrameRate > 0 {
		frame = time.Second / time.Duration(cfg.Client.FrameRate)
	}

	seed := uint64(time.Now().UnixNano())
	driver := client.NewDriver(gc.Conn(), welcome, client.Options{
		Presenter:     presenter,
		Planner:       client.NewBotPlanner(behavior, welcome.Sectors, rand.New(rand.NewPCG(seed, uint64(welcome.ClientID)))),
		Logger:        logger,
		Bus:           bus,
		FrameInterval: frame,
	})

	// First signal ends the battle after the current turn, second aborts.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info(ctx, "Leaving after this turn")
		presenter.RequestClose()
		<-sigChan
		cancel()
	}()

	if err := driver.Run(runCtx); err != nil && runCtx.Err() == nil {
		logger.Error(ctx, "Battle aborted", err, "phase", driver.Phase().String())
		os.Exit(1)
	}
}
