package entity

// ShipState is the mutable combat state of a ship.
type ShipState struct {
	HP            int
	PowerProduced int
	PowerConsumed int
	Thrust        int

	// TargetSector is the sector the player chose to jump towards, if any.
	TargetSector *SectorID
	// Jumping is set by the server when the ship leaves the battle this turn.
	Jumping bool

	shields map[ModuleIndex]int
}

// PowerAvailable returns the unspent part of the power budget.
func (s *ShipState) PowerAvailable() int {
	return s.PowerProduced - s.PowerConsumed
}

// SetShield sets how much damage module can absorb for the rest of the turn.
func (s *ShipState) SetShield(module ModuleIndex, capacity int) {
	if s.shields == nil {
		s.shields = make(map[ModuleIndex]int)
	}
	s.shields[module] += capacity
}

// Shield returns the remaining absorb capacity covering module.
func (s *ShipState) Shield(module ModuleIndex) int {
	return s.shields[module]
}

func (s *ShipState) absorb(module ModuleIndex, amount int) int {
	left := s.shields[module]
	if left <= 0 {
		return amount
	}
	absorbed := min(left, amount)
	s.shields[module] = left - absorbed
	return amount - absorbed
}

func (s *ShipState) resetShields() {
	clear(s.shields)
}
