package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-shipbattle/pkg/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	turns       metric.Int64Counter
	turnTime    metric.Float64Histogram
	plans       metric.Int64Counter
	disconnects metric.Int64Counter
	ships       metric.Int64ObservableGauge
	players     metric.Int64ObservableGauge

	battle       metric.MeasurementOption
	registration metric.Registration
}

// newMetrics registers the battle's instruments on m. The global provider is
// a no-op unless one is configured.
func newMetrics(m metric.Meter, b *Battle) (*metrics, error) {
	out := &metrics{
		battle: metric.WithAttributes(attribute.String("battle_id", b.ID)),
	}

	var err error
	out.turns, err = m.Int64Counter(
		"battle.turns",
		metric.WithDescription("Turns resolved"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turn counter: %w", err)
	}

	out.turnTime, err = m.Float64Histogram(
		"battle.turn.duration",
		metric.WithDescription("Time spent resolving a turn, excluding pacing"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating turn duration histogram: %w", err)
	}

	out.plans, err = m.Int64Counter(
		"battle.plans",
		metric.WithDescription("Plans handled, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plan counter: %w", err)
	}

	out.disconnects, err = m.Int64Counter(
		"battle.disconnects",
		metric.WithDescription("Players dropped for errors or silence on the wire"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating disconnect counter: %w", err)
	}

	out.ships, err = m.Int64ObservableGauge(
		"battle.ships",
		metric.WithDescription("Ships in the battle"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ship gauge: %w", err)
	}

	out.players, err = m.Int64ObservableGauge(
		"battle.players",
		metric.WithDescription("Seated players"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating player gauge: %w", err)
	}

	out.registration, err = m.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(out.ships, b.shipCount.Load(), out.battle)
			o.ObserveInt64(out.players, b.playerCount.Load(), out.battle)
			return nil
		},
		out.ships, out.players,
	)
	if err != nil {
		return nil, fmt.Errorf("registering battle callback: %w", err)
	}
	return out, nil
}

func (m *metrics) recordTurn(ctx context.Context, d time.Duration) {
	m.turns.Add(ctx, 1, m.battle)
	m.turnTime.Record(ctx, d.Seconds(), m.battle)
}

func (m *metrics) countPlan(ctx context.Context, outcome string) {
	m.plans.Add(ctx, 1, m.battle, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) countDisconnect(ctx context.Context) {
	m.disconnects.Add(ctx, 1, m.battle)
}

// close stops observing the battle's gauges.
func (m *metrics) close() error {
	return m.registration.Unregister()
}
