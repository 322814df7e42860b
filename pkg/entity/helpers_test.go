package entity

import (
	"github.com/opd-ai/go-shipbattle/pkg/protocol"
)

// testModule is a configurable module used to exercise the ship aggregate
// without depending on the built-in variants.
type testModule struct {
	ModuleBase
	kind        ModuleType
	produces    int
	mode        *TargetMode
	activated   int
	deactivated int
}

func newTestModule(kind ModuleType, x, y, w, h, cost int) *testModule {
	m := &testModule{ModuleBase: NewModuleBase(w, h, cost, 1, 2), kind: kind}
	m.X, m.Y = x, y
	return m
}

func newProducer(x, y, output int) *testModule {
	m := newTestModule(TypeSolar, x, y, 1, 1, 0)
	m.produces = output
	return m
}

func (m *testModule) Type() ModuleType { return m.kind }

func (m *testModule) OnActivated(state *ShipState, _ []Module) {
	m.activated++
	if m.produces > 0 {
		AddPower(state, m.produces)
	}
}

func (m *testModule) OnDeactivated(state *ShipState, modules []Module) {
	m.deactivated++
	if m.produces > 0 {
		RemovePower(state, modules, m.produces)
	}
}

func (m *testModule) TargetMode() (TargetMode, bool) {
	if m.mode == nil {
		return TargetMode{}, false
	}
	return *m.mode, true
}

func (m *testModule) WritePlans(p *protocol.OutPacket) { m.WriteTargetPlan(p) }

func (m *testModule) ReadPlans(r Resolver, p *protocol.InPacket) error {
	return m.ReadTargetPlan(r, p)
}

type registry map[ShipID]*Ship

func (r registry) Ship(id ShipID) (*Ship, bool) {
	s, ok := r[id]
	return s, ok
}

func mustAdd(s *Ship, modules ...Module) *Ship {
	for _, m := range modules {
		if err := s.AddModule(m); err != nil {
			panic(err)
		}
	}
	return s
}
