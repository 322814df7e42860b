// Package health serves liveness and readiness probes for the battle server.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Status values reported by checks and probes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Check is one probe-able component.
type Check interface {
	Name() string
	Check(ctx context.Context) error
}

// Report is the readiness response body.
type Report struct {
	Status string                     `json:"status"`
	Checks map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth is the result of one check.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Checker runs the registered checks.
type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{checks: make(map[string]Check)}
}

// Add registers a check, replacing any with the same name.
func (c *Checker) Add(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name()] = check
}

// Remove unregisters a check by name.
func (c *Checker) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check. The report is healthy only if all checks pass.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	report := Report{
		Status: StatusHealthy,
		Checks: make(map[string]ComponentHealth, len(c.checks)),
	}
	for name, check := range c.checks {
		if err := check.Check(ctx); err != nil {
			report.Status = StatusUnhealthy
			report.Checks[name] = ComponentHealth{Status: StatusUnhealthy, Message: err.Error()}
			continue
		}
		report.Checks[name] = ComponentHealth{Status: StatusHealthy}
	}
	return report
}

// LivenessHandler answers 200 while the process can serve HTTP.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessHandler runs all checks with a 5 second budget and answers 503
// when any of them fails.
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := c.Run(ctx)
	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// Mux returns a handler serving /health and /ready.
func (c *Checker) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.LivenessHandler)
	mux.HandleFunc("/ready", c.ReadinessHandler)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// TurnCheck fails when the battle has not finished a turn recently.
type TurnCheck struct {
	lastTurn func() time.Time
	maxAge   time.Duration
	now      func() time.Time
}

// NewTurnCheck reports unhealthy when lastTurn is zero or older than maxAge.
func NewTurnCheck(lastTurn func() time.Time, maxAge time.Duration) *TurnCheck {
	return &TurnCheck{lastTurn: lastTurn, maxAge: maxAge, now: time.Now}
}

func (t *TurnCheck) Name() string { return "battle" }

func (t *TurnCheck) Check(ctx context.Context) error {
	last := t.lastTurn()
	if last.IsZero() {
		return fmt.Errorf("battle has not completed a turn")
	}
	if age := t.now().Sub(last); age > t.maxAge {
		return fmt.Errorf("last turn finished %s ago (limit %s)", age.Round(time.Millisecond), t.maxAge)
	}
	return nil
}

// ListenerCheck fails while the server has no bound listener.
type ListenerCheck struct {
	addr func() string
}

// NewListenerCheck wraps a function returning the bound address or "".
func NewListenerCheck(addr func() string) *ListenerCheck {
	return &ListenerCheck{addr: addr}
}

func (l *ListenerCheck) Name() string { return "listener" }

func (l *ListenerCheck) Check(ctx context.Context) error {
	if l.addr() == "" {
		return fmt.Errorf("network listener is not active")
	}
	return nil
}

// PingCheck wraps a context-aware ping, such as a database handle.
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck names a ping function as a check.
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (p *PingCheck) Name() string { return p.name }

func (p *PingCheck) Check(ctx context.Context) error {
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("%s ping: %w", p.name, err)
	}
	return nil
}

// MemoryCheck fails when heap allocation exceeds a limit.
type MemoryCheck struct {
	maxMB int64
	usage func() int64
}

// NewMemoryCheck limits heap usage to maxMB. A nil usage reads runtime stats.
func NewMemoryCheck(maxMB int64, usage func() int64) *MemoryCheck {
	if usage == nil {
		usage = HeapMB
	}
	return &MemoryCheck{maxMB: maxMB, usage: usage}
}

func (m *MemoryCheck) Name() string { return "memory" }

func (m *MemoryCheck) Check(ctx context.Context) error {
	if current := m.usage(); current > m.maxMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", current, m.maxMB)
	}
	return nil
}

// HeapMB returns the current heap allocation in megabytes.
func HeapMB() int64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return int64(stats.Alloc / 1024 / 1024)
}
