package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCheck struct {
	name string
	err  error
}

func (s *stubCheck) Name() string { return s.name }
func (s *stubCheck) Check(ctx context.Context) error { return s.err }

type slowCheck struct {
	delay time.Duration
}

func (s *slowCheck) Name() string { return "slow" }

func (s *slowCheck) Check(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestChecker_AddRemove(t *testing.T) {
	c := NewChecker()
	c.Add(&stubCheck{name: "b"})
	c.Add(&stubCheck{name: "a"})
	c.Add(&stubCheck{name: "a", err: errors.New("replaced")})

	assert.Equal(t, []string{"a", "b"}, c.Names())

	c.Remove("a")
	assert.Equal(t, []string{"b"}, c.Names())
}

func TestChecker_Run(t *testing.T) {
	tests := []struct {
		name     string
		checks   []*stubCheck
		expected string
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []*stubCheck{{name: "x"}, {name: "y"}}, StatusHealthy},
		{"one failing", []*stubCheck{{name: "x"}, {name: "y", err: errors.New("down")}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for _, check := range tt.checks {
				c.Add(check)
			}

			report := c.Run(context.Background())
			assert.Equal(t, tt.expected, report.Status)
			assert.Len(t, report.Checks, len(tt.checks))
			for _, check := range tt.checks {
				want := StatusHealthy
				if check.err != nil {
					want = StatusUnhealthy
				}
				assert.Equal(t, want, report.Checks[check.name].Status, check.name)
			}
		})
	}
}

func TestChecker_RunRespectsDeadline(t *testing.T) {
	c := NewChecker()
	c.Add(&slowCheck{delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := c.Run(ctx)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.NotEmpty(t, report.Checks["slow"].Message)
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewChecker().LivenessHandler(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"ready", nil, http.StatusOK},
		{"not ready", fmt.Errorf("journal unavailable"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.Add(&stubCheck{name: "journal", err: tt.err})

			w := httptest.NewRecorder()
			c.Mux().ServeHTTP(w, httptest.NewRequest("GET", "/ready", nil))
			assert.Equal(t, tt.code, w.Code)

			var report Report
			require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
			if tt.err != nil {
				assert.Equal(t, "journal unavailable", report.Checks["journal"].Message)
			}
		})
	}
}

func TestTurnCheck(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		last    time.Time
		wantErr bool
	}{
		{"no turn yet", time.Time{}, true},
		{"recent turn", now.Add(-3 * time.Second), false},
		{"stalled", now.Add(-time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewTurnCheck(func() time.Time { return tt.last }, 15*time.Second)
			check.now = func() time.Time { return now }

			assert.Equal(t, "battle", check.Name())
			err := check.Check(context.Background())
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestListenerCheck(t *testing.T) {
	addr := ""
	check := NewListenerCheck(func() string { return addr })
	assert.Error(t, check.Check(context.Background()))

	addr = "127.0.0.1:4000"
	assert.NoError(t, check.Check(context.Background()))
}

func TestPingCheck(t *testing.T) {
	down := errors.New("connection refused")
	check := NewPingCheck("journal", func(ctx context.Context) error { return down })

	assert.Equal(t, "journal", check.Name())
	err := check.Check(context.Background())
	assert.ErrorIs(t, err, down)
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name    string
		max     int64
		current int64
		wantErr bool
	}{
		{"within limit", 100, 50, false},
		{"at limit", 100, 100, false},
		{"over limit", 100, 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewMemoryCheck(tt.max, func() int64 { return tt.current })
			err := check.Check(context.Background())
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}

	assert.NoError(t, NewMemoryCheck(1<<20, nil).Check(context.Background()))
}
