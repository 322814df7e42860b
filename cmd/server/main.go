// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/engine"
	"github.com/opd-ai/go-shipbattle/pkg/health"
	"github.com/opd-ai/go-shipbattle/pkg/journal"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
	"github.com/opd-ai/go-shipbattle/pkg/network"
)

func main() {
	configPath := flag.String("config", "", "Path to a JSON configuration file")
	printSchema := flag.Bool("schema", false, "Print the configuration JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(append(schema, '\n'))
		return
	}

	if err := run(*configPath); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := logging.WithCorrelationID(context.Background(), "")

	cfg, err := config.Load(configPath)
	if err != nil {
		logging.NewLogger().Error(ctx, "Failed to load configuration", err, "config_path", configPath)
		return err
	}
	logger := logging.NewLoggerWithWriter(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	battle, err := engine.NewBattle(cfg.Server, cfg.SectorData(), logger)
	if err != nil {
		logger.Error(ctx, "Failed to create battle", err)
		return err
	}

	checker := health.NewChecker()

	// Optional battle journal
	if cfg.Server.JournalDSN != "" {
		j, err := journal.Open(cfg.Server.JournalDSN)
		if err != nil {
			logger.Error(ctx, "Failed to open journal", err)
			return err
		}
		defer j.Close()
		battle.SetJournal(j)
		checker.Add(health.NewPingCheck("journal", j.Ping))
	}

	server := network.NewGameServer(cfg.Server, battle, logger)

	checker.Add(health.NewTurnCheck(battle.LastTurn, 3*(cfg.Server.PlanTimeout+5*time.Second)))
	checker.Add(health.NewListenerCheck(server.ListenerAddress))
	checker.Add(health.NewMemoryCheck(500, nil))

	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler:      checker.Mux(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info(ctx, "Starting health check server", "port", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Health check server failed", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- battle.Run(runCtx) }()

	logger.Info(ctx, "Starting server",
		"address", cfg.Server.Address,
		"websocket_address", cfg.Server.WebSocketAddress,
		"max_clients", cfg.Server.MaxClients,
		"battle_id", battle.ID,
	)
	if err := server.Start(); err != nil {
		logger.Error(ctx, "Failed to start server", err, "address", cfg.Server.Address)
		stop()
		<-done
		return err
	}

	var runErr error
	select {
	case <-runCtx.Done():
		runErr = <-done
	case runErr = <-done:
	}
	if runErr != nil {
		logger.Error(ctx, "Battle stopped", runErr)
	}
	logger.Info(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Health check server shutdown failed", err)
	}
	server.Stop()
	return runErr
}
