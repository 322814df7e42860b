package entity

import (
	"fmt"
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/physics"
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
	"github.com/opd-ai/go-shipbattle/pkg/sim"
)

// Ship aggregates a grid of modules and the combat state they drive.
type Ship struct {
	ID      ShipID
	Name    string
	Modules []Module
	State   ShipState

	// Width and Height are the grid footprint of all placed modules.
	Width  int
	Height int
}

// NewShip creates an empty ship.
func NewShip(id ShipID, name string) *Ship {
	return &Ship{ID: id, Name: name}
}

// AddModule appends m, assigning its index. The footprint must be free.
func (s *Ship) AddModule(m Module) error {
	b := m.Base()
	if !s.IsSpaceFree(b.X, b.Y, b.Width, b.Height) {
		return fmt.Errorf("%w: %s at (%d,%d)", ErrSpaceOccupied, m.Type(), b.X, b.Y)
	}
	b.Index = ModuleIndex(len(s.Modules))
	s.Modules = append(s.Modules, m)
	s.Width = max(s.Width, b.X+b.Width)
	s.Height = max(s.Height, b.Y+b.Height)
	s.recomputeHP()
	return nil
}

// IsSpaceFree reports whether the rectangle lies on the grid without
// touching any placed module.
func (s *Ship) IsSpaceFree(x, y, width, height int) bool {
	if x < 0 || y < 0 || width <= 0 || height <= 0 {
		return false
	}
	want := physics.Rect{X: x, Y: y, Width: width, Height: height}
	for _, m := range s.Modules {
		if m.Base().Footprint().Overlaps(want) {
			return false
		}
	}
	return true
}

// Module looks up a module by index.
func (s *Ship) Module(index ModuleIndex) (Module, bool) {
	if int(index) >= len(s.Modules) {
		return nil, false
	}
	return s.Modules[index], true
}

// ModuleAt returns the module covering grid cell (x, y).
func (s *Ship) ModuleAt(x, y int) (Module, bool) {
	for _, m := range s.Modules {
		if m.Base().Footprint().ContainsCell(x, y) {
			return m, true
		}
	}
	return nil, false
}

// Command returns the ship's command module, if it has one.
func (s *Ship) Command() (Module, bool) {
	for _, m := range s.Modules {
		if m.Type() == TypeCommand {
			return m, true
		}
	}
	return nil, false
}

// HP is the sum of module health, or zero once the command module is gone.
func (s *Ship) HP() int { return s.State.HP }

// Destroyed reports whether the ship has no hit points left.
func (s *Ship) Destroyed() bool { return s.State.HP <= 0 }

func (s *Ship) recomputeHP() {
	if cmd, ok := s.Command(); ok && cmd.Base().Destroyed() {
		s.State.HP = 0
		return
	}
	total := 0
	for _, m := range s.Modules {
		total += m.Base().HP
	}
	s.State.HP = total
}

// Activate tries to power up the module at index. A false result is a
// rejected transition, not an error.
func (s *Ship) Activate(index ModuleIndex) bool {
	m, ok := s.Module(index)
	if !ok {
		return false
	}
	return Activate(&s.State, s.Modules, m)
}

// Deactivate powers down the module at index.
func (s *Ship) Deactivate(index ModuleIndex) {
	if m, ok := s.Module(index); ok {
		Deactivate(&s.State, s.Modules, m)
	}
}

// ActiveFlags returns the power state of every module, by index.
func (s *Ship) ActiveFlags() []bool {
	flags := make([]bool, len(s.Modules))
	for i, m := range s.Modules {
		flags[i] = m.Base().IsActive()
	}
	return flags
}

// ApplyPowerPlan moves the ship towards the wanted power state. Unwanted
// modules go down first in descending index, then wanted producers come up,
// then wanted consumers in ascending index while the budget lasts. Modules
// whose activation was rejected are returned. Entries missing from wanted
// leave their module unchanged.
func (s *Ship) ApplyPowerPlan(wanted []bool) []ModuleIndex {
	return s.reconcilePower(wanted, Activate)
}

// RestorePowerState applies a power state decided by the server. Health is
// not rechecked; the budget still is, and modules that did not fit are
// returned.
func (s *Ship) RestorePowerState(active []bool) []ModuleIndex {
	return s.reconcilePower(active, func(state *ShipState, modules []Module, m Module) bool {
		if m.Base().PowerCost > state.PowerAvailable() {
			return false
		}
		powerOn(state, modules, m)
		return true
	})
}

func (s *Ship) reconcilePower(wanted []bool, activate func(*ShipState, []Module, Module) bool) []ModuleIndex {
	want := func(i int) (bool, bool) {
		if i >= len(wanted) {
			return false, false
		}
		return wanted[i], true
	}

	for i := len(s.Modules) - 1; i >= 0; i-- {
		if w, ok := want(i); ok && !w {
			Deactivate(&s.State, s.Modules, s.Modules[i])
		}
	}

	var rejected []ModuleIndex
	for _, producers := range []bool{true, false} {
		for i, m := range s.Modules {
			b := m.Base()
			if w, ok := want(i); !ok || !w || b.IsActive() || (b.PowerCost == 0) != producers {
				continue
			}
			if !activate(&s.State, s.Modules, m) {
				rejected = append(rejected, b.Index)
			}
		}
	}
	return rejected
}

// Damage deals amount to the module at index after shields absorb their
// share, and returns the damage that reached the module.
func (s *Ship) Damage(index ModuleIndex, amount int) int {
	m, ok := s.Module(index)
	if !ok || amount <= 0 {
		return 0
	}
	b := m.Base()
	dealt := min(s.State.absorb(index, amount), b.HP)
	b.HP -= dealt
	s.recomputeHP()
	return dealt
}

// ServerPreprocess runs every module's preprocess step.
func (s *Ship) ServerPreprocess(rng *rand.Rand) {
	for _, m := range s.Modules {
		m.ServerPreprocess(&s.State, rng)
	}
}

// BeforeSimulation lets every module register its effects for the turn.
func (s *Ship) BeforeSimulation(events sim.EventAdder) {
	for _, m := range s.Modules {
		m.BeforeSimulation(s, events)
	}
}

// AfterSimulation finalizes the turn: modules first, then broken modules are
// powered down in descending index and shields expire.
func (s *Ship) AfterSimulation() {
	for _, m := range s.Modules {
		m.AfterSimulation(&s.State)
	}
	for i := len(s.Modules) - 1; i >= 0; i-- {
		if b := s.Modules[i].Base(); b.IsActive() && !b.Functional() {
			Deactivate(&s.State, s.Modules, s.Modules[i])
		}
	}
	s.State.resetShields()
	s.recomputeHP()
}

// ClearTargetsOn drops every planned target that points at ship.
func (s *Ship) ClearTargetsOn(ship *Ship) {
	for _, m := range s.Modules {
		if b := m.Base(); b.Target != nil && b.Target.Ship == ship {
			b.Target = nil
		}
	}
}

// DropIllegalTargets clears targets the module's target mode does not allow
// and returns how many were dropped.
func (s *Ship) DropIllegalTargets() int {
	dropped := 0
	for _, m := range s.Modules {
		b := m.Base()
		if b.Target == nil {
			continue
		}
		if mode, ok := m.TargetMode(); !ok || !mode.Accepts(s, b.Target) {
			b.Target = nil
			dropped++
		}
	}
	return dropped
}

// WritePlans serializes the player's plan: the chosen sector followed by one
// record per module carrying its wanted power state and its plan.
func (s *Ship) WritePlans(p *protocol.OutPacket) {
	writeSector(p, s.State.TargetSector)
	p.WriteU32(uint32(len(s.Modules)))
	for _, m := range s.Modules {
		b := m.Base()
		p.WriteU32(uint32(b.Index))
		p.WriteBool(b.IsActive())
		m.WritePlans(p)
	}
}

// ReadPlans decodes a plan written by WritePlans onto this ship and returns
// the wanted power state. Power is not touched; see ApplyPowerPlan. On error
// the ship keeps the sector and targets it had before the call.
func (s *Ship) ReadPlans(r Resolver, p *protocol.InPacket) (wanted []bool, err error) {
	saved := s.savePlan()
	defer func() {
		if err != nil {
			s.restorePlan(saved)
		}
	}()
	return s.readPlans(r, p)
}

type savedPlan struct {
	sector  *SectorID
	targets []*TargetData
}

func (s *Ship) savePlan() savedPlan {
	saved := savedPlan{sector: s.State.TargetSector, targets: make([]*TargetData, len(s.Modules))}
	for i, m := range s.Modules {
		saved.targets[i] = m.Base().Target
	}
	return saved
}

func (s *Ship) restorePlan(saved savedPlan) {
	s.State.TargetSector = saved.sector
	for i, m := range s.Modules {
		m.Base().Target = saved.targets[i]
	}
}

func (s *Ship) readPlans(r Resolver, p *protocol.InPacket) ([]bool, error) {
	s.State.TargetSector = readSector(p)
	wanted := s.ActiveFlags()

	count := p.ReadU32()
	if err := p.Err(); err != nil {
		return nil, err
	}
	if int(count) > len(s.Modules) {
		return nil, fmt.Errorf("%w: %d plan records for %d modules", protocol.ErrMalformedPacket, count, len(s.Modules))
	}
	for range count {
		index := ModuleIndex(p.ReadU32())
		active := p.ReadBool()
		if err := p.Err(); err != nil {
			return nil, err
		}
		m, ok := s.Module(index)
		if !ok {
			return nil, &ResolutionError{Ship: s.ID, Module: index, HasModule: true, Err: ErrUnknownModule}
		}
		wanted[index] = active
		if err := m.ReadPlans(r, p); err != nil {
			return nil, err
		}
	}
	return wanted, p.Err()
}

// WriteResults serializes the resolved turn for this ship: power state, the
// echoed plan and the result of every module.
func (s *Ship) WriteResults(p *protocol.OutPacket) {
	p.WriteU64(uint64(s.ID))
	p.WriteBool(s.State.Jumping)
	p.WriteU32(uint32(len(s.Modules)))
	for _, m := range s.Modules {
		p.WriteBool(m.Base().IsActive())
		m.WritePlans(p)
		m.WriteResults(p)
	}
}

// ReadResults decodes what WriteResults wrote after the ship id, then adopts
// the server's power state.
func (s *Ship) ReadResults(r Resolver, p *protocol.InPacket) error {
	jumping := p.ReadBool()
	count := p.ReadU32()
	if err := p.Err(); err != nil {
		return err
	}
	if int(count) != len(s.Modules) {
		return fmt.Errorf("%w: ship %d has %d modules, results carry %d",
			protocol.ErrMalformedPacket, s.ID, len(s.Modules), count)
	}

	active := make([]bool, count)
	for i, m := range s.Modules {
		active[i] = p.ReadBool()
		if err := m.ReadPlans(r, p); err != nil {
			return err
		}
		if err := m.ReadResults(p); err != nil {
			return err
		}
	}
	if err := p.Err(); err != nil {
		return err
	}

	s.State.Jumping = jumping
	if rejected := s.RestorePowerState(active); len(rejected) > 0 {
		return fmt.Errorf("%w: ship %d power state diverged, modules %v could not be activated",
			protocol.ErrMalformedPacket, s.ID, rejected)
	}
	return nil
}

func writeSector(p *protocol.OutPacket, sector *SectorID) {
	if sector == nil {
		p.WriteBool(false)
		return
	}
	p.WriteBool(true)
	p.WriteU32(uint32(*sector))
}

func readSector(p *protocol.InPacket) *SectorID {
	if !p.ReadBool() {
		return nil
	}
	id := SectorID(p.ReadU32())
	return &id
}
