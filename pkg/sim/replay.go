package sim

import "time"

// Replayer walks an Events sink forward as turn time elapses.
type Replayer struct {
	events *Events
	onTick func(tick int)
}

// NewReplayer wraps events. onTick, when non-nil, is called after each tick.
func NewReplayer(events *Events, onTick func(tick int)) *Replayer {
	return &Replayer{events: events, onTick: onTick}
}

// AdvanceTo applies every tick from the one after the last applied through
// the tick reached at elapsed, inclusive. It returns how many ticks ran.
func (r *Replayer) AdvanceTo(elapsed time.Duration) (int, error) {
	target := TickAt(elapsed)
	if target > LastTick {
		target = LastTick
	}
	return r.applyThrough(target)
}

// Close applies every remaining tick of the turn.
func (r *Replayer) Close() (int, error) {
	return r.applyThrough(LastTick)
}

// NextTick returns the next tick that will be applied.
func (r *Replayer) NextTick() int { return r.events.LastApplied() + 1 }

func (r *Replayer) applyThrough(target int) (int, error) {
	applied := 0
	for t := r.events.LastApplied() + 1; t <= target; t++ {
		if err := r.events.ApplyTick(t); err != nil {
			return applied, err
		}
		applied++
		if r.onTick != nil {
			r.onTick(t)
		}
	}
	return applied, nil
}
