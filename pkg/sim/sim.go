// Package sim holds the tick clock shared by the server and clients when a
// turn's results are replayed.
package sim

import (
	"errors"
	"fmt"
	"time"
)

// TicksPerSecond is the fixed simulation rate.
const TicksPerSecond = 10

// Turn timing, measured from the start of a turn.
const (
	PlanDeadline   = 2500 * time.Millisecond
	ReplayDeadline = 5 * time.Second
)

// LastTick is the final tick of a turn.
const LastTick = int(ReplayDeadline / time.Second * TicksPerSecond)

var (
	// ErrTickReplayed is returned when a tick that already ran is applied again.
	ErrTickReplayed = errors.New("tick already applied")
	// ErrTickSkipped is returned when a tick is applied before its predecessor.
	ErrTickSkipped = errors.New("tick applied out of order")
)

// TickAt returns the tick index reached after elapsed time.
func TickAt(elapsed time.Duration) int {
	if elapsed < 0 {
		return -1
	}
	return int(elapsed.Milliseconds() / (1000 / TicksPerSecond))
}

// EventAdder receives tick-indexed effects while modules prepare a turn.
type EventAdder interface {
	AddEvent(tick int, fn func())
}

// Events is the per-turn sink of tick-indexed effects. Events registered for
// the same tick run in registration order.
type Events struct {
	byTick map[int][]func()
	last   int
}

// NewEvents returns an empty sink with no tick applied yet.
func NewEvents() *Events {
	return &Events{byTick: make(map[int][]func()), last: -1}
}

// AddEvent schedules fn for tick. Ticks outside the turn are clamped to it.
func (e *Events) AddEvent(tick int, fn func()) {
	if tick < 0 {
		tick = 0
	}
	if tick > LastTick {
		tick = LastTick
	}
	e.byTick[tick] = append(e.byTick[tick], fn)
}

// Len returns the number of scheduled effects.
func (e *Events) Len() int {
	n := 0
	for _, fns := range e.byTick {
		n += len(fns)
	}
	return n
}

// LastApplied returns the most recent tick applied, or -1.
func (e *Events) LastApplied() int { return e.last }

// ApplyTick runs every effect registered for tick. Ticks must be applied
// exactly once each, in increasing order.
func (e *Events) ApplyTick(tick int) error {
	switch {
	case tick <= e.last:
		return fmt.Errorf("%w: %d", ErrTickReplayed, tick)
	case tick != e.last+1:
		return fmt.Errorf("%w: %d after %d", ErrTickSkipped, tick, e.last)
	}
	e.last = tick
	for _, fn := range e.byTick[tick] {
		fn()
	}
	delete(e.byTick, tick)
	return nil
}
