package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
)

// callbackMeter keeps the registered callback so tests can observe it.
type callbackMeter struct {
	noop.Meter
	callback     metric.Callback
	registration *countingRegistration
}

func (m *callbackMeter) RegisterCallback(f metric.Callback, _ ...metric.Observable) (metric.Registration, error) {
	m.callback = f
	m.registration = &countingRegistration{}
	return m.registration, nil
}

type countingRegistration struct {
	embedded.Registration
	unregistered int
}

func (r *countingRegistration) Unregister() error {
	r.unregistered++
	return nil
}

type observation struct {
	value    int64
	battleID string
}

type recordingObserver struct {
	embedded.Observer
	int64s []observation
}

func (o *recordingObserver) ObserveFloat64(metric.Float64Observable, float64, ...metric.ObserveOption) {
}

func (o *recordingObserver) ObserveInt64(_ metric.Int64Observable, v int64, opts ...metric.ObserveOption) {
	attrs := metric.NewObserveConfig(opts).Attributes()
	id, _ := attrs.Value("battle_id")
	o.int64s = append(o.int64s, observation{value: v, battleID: id.AsString()})
}

func TestMetrics_GaugesCarryBattleID(t *testing.T) {
	b := newTestBattle(t, 4)
	m := &callbackMeter{}
	var err error
	b.metrics, err = newMetrics(m, b)
	require.NoError(t, err)
	require.NotNil(t, m.callback)

	b.shipCount.Store(3)
	b.playerCount.Store(2)
	o := &recordingObserver{}
	require.NoError(t, m.callback(context.Background(), o))

	assert.Equal(t, []observation{
		{value: 3, battleID: b.ID},
		{value: 2, battleID: b.ID},
	}, o.int64s)
}

func TestMetrics_ShutdownUnregistersCallback(t *testing.T) {
	b := newTestBattle(t, 4)
	m := &callbackMeter{}
	var err error
	b.metrics, err = newMetrics(m, b)
	require.NoError(t, err)

	b.shutdown()
	assert.Equal(t, 1, m.registration.unregistered)
}
