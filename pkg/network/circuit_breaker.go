package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-shipbattle/pkg/config"
	"github.com/opd-ai/go-shipbattle/pkg/logging"
)

// NetworkService runs connection attempts through a circuit breaker so a
// client stops hammering a server that keeps refusing it.
type NetworkService struct {
	breaker    *gobreaker.CircuitBreaker
	logger     *logging.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NetworkOperation is one attempt at a network operation.
type NetworkOperation func() error

// NewNetworkService builds a breaker from cfg.
func NewNetworkService(cfg config.CircuitBreakerConfig, logger *logging.Logger) *NetworkService {
	settings := gobreaker.Settings{
		Name:        "shipbattle-network",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &NetworkService{
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
		maxRetries: 3,
		baseDelay:  time.Second,
	}
}

// Execute runs operation unless the circuit is open.
func (ns *NetworkService) Execute(ctx context.Context, operation NetworkOperation) error {
	_, err := ns.breaker.Execute(func() (interface{}, error) {
		return nil, operation()
	})
	if err != nil {
		ns.logger.LogWithContext(ctx, slog.LevelError, "circuit breaker execution failed",
			"error", err,
			"state", ns.breaker.State().String(),
		)
		return fmt.Errorf("circuit breaker: %w", err)
	}
	return nil
}

// ExecuteWithRetry retries a failing operation with a linearly growing delay.
// It gives up early when the circuit opens or ctx ends.
func (ns *NetworkService) ExecuteWithRetry(ctx context.Context, operation NetworkOperation) error {
	var err error
	for attempt := 1; attempt <= ns.maxRetries; attempt++ {
		if err = ns.Execute(ctx, operation); err == nil {
			return nil
		}

		if ns.breaker.State() == gobreaker.StateOpen {
			ns.logger.Warn(ctx, "circuit breaker is open, skipping retries",
				"attempt", attempt,
				"max_retries", ns.maxRetries,
			)
			return err
		}
		if attempt == ns.maxRetries {
			break
		}

		delay := time.Duration(attempt) * ns.baseDelay
		ns.logger.Warn(ctx, "operation failed, retrying",
			"attempt", attempt,
			"max_retries", ns.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", ns.maxRetries, err)
}

// State returns the breaker state.
func (ns *NetworkService) State() gobreaker.State {
	return ns.breaker.State()
}

// Counts returns the breaker's request counters.
func (ns *NetworkService) Counts() gobreaker.Counts {
	return ns.breaker.Counts()
}
