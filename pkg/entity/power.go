package entity

// Activate powers m up if the budget allows it. Producers and free modules
// always succeed; consumers are rejected when they would exceed the budget or
// the module is too damaged to run.
func Activate(state *ShipState, modules []Module, m Module) bool {
	b := m.Base()
	if b.active {
		return true
	}
	if !b.Functional() {
		return false
	}
	if b.PowerCost > state.PowerAvailable() {
		return false
	}
	powerOn(state, modules, m)
	return true
}

// Deactivate powers m down, applying its deactivation effect.
func Deactivate(state *ShipState, modules []Module, m Module) {
	b := m.Base()
	if !b.active {
		return
	}
	b.active = false
	state.PowerConsumed -= b.PowerCost
	m.OnDeactivated(state, modules)
}

func powerOn(state *ShipState, modules []Module, m Module) {
	b := m.Base()
	b.active = true
	state.PowerConsumed += b.PowerCost
	m.OnActivated(state, modules)
}

// AddPower raises the ship's production.
func AddPower(state *ShipState, amount int) {
	state.PowerProduced += amount
}

// RemovePower lowers the ship's production and, when consumption no longer
// fits, force-deactivates active consumers in descending module index until
// it does. Each module is visited at most once, so the cascade terminates.
func RemovePower(state *ShipState, modules []Module, amount int) {
	state.PowerProduced -= amount
	for i := len(modules) - 1; i >= 0 && state.PowerConsumed > state.PowerProduced; i-- {
		m := modules[i]
		if b := m.Base(); b.active && b.PowerCost > 0 {
			Deactivate(state, modules, m)
		}
	}
}
