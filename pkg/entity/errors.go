package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownShip means a ShipID did not resolve in the battle registry.
	ErrUnknownShip = errors.New("unknown ship")
	// ErrUnknownModule means a ModuleIndex is out of range for its ship.
	ErrUnknownModule = errors.New("unknown module")
	// ErrSpaceOccupied is returned when a module would overlap another.
	ErrSpaceOccupied = errors.New("module footprint overlaps another module")
)

// ResolutionError reports a wire reference that could not be turned back into
// a live ship or module. The registry and the peer have diverged, which is
// recoverable at the session level.
type ResolutionError struct {
	Ship      ShipID
	Module    ModuleIndex
	HasModule bool
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.HasModule {
		return fmt.Sprintf("resolve ship %d module %d: %v", e.Ship, e.Module, e.Err)
	}
	return fmt.Sprintf("resolve ship %d: %v", e.Ship, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
