package validation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// RateLimiter keeps one token bucket per client
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	idle        time.Duration
	clients     map[entity.ClientID]*clientLimiter
	mu          sync.Mutex
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond packets per client with the given burst.
// Clients idle for longer than idle are forgotten.
func NewRateLimiter(perSecond float64, burst int, idle time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		clients: make(map[entity.ClientID]*clientLimiter),
		done:    make(chan struct{}),
	}

	rl.cleanupTick = time.NewTicker(idle)
	go rl.cleanup()

	return rl
}

// Allow reports whether the client may send another packet now
func (rl *RateLimiter) Allow(client entity.ClientID) bool {
	rl.mu.Lock()
	cl, exists := rl.clients[client]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Forget drops the client's bucket
func (rl *RateLimiter) Forget(client entity.ClientID) {
	rl.mu.Lock()
	delete(rl.clients, client)
	rl.mu.Unlock()
}

// Tracked returns how many clients currently have a bucket
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeInactiveClients(time.Now().Add(-rl.idle))
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) removeInactiveClients(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
