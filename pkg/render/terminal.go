// Package render draws ships as ASCII module grids.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/opd-ai/go-shipbattle/pkg/battle"
	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// Cell symbols. Inactive modules use the lower-case form.
const (
	emptyCell     = '.'
	destroyedCell = 'x'
	shotCell      = '*'
)

var symbols = map[entity.ModuleType]rune{
	entity.TypeCommand:          'C',
	entity.TypeEngine:           'E',
	entity.TypeSolar:            'S',
	entity.TypeShield:           'D',
	entity.TypeProjectileWeapon: 'P',
	entity.TypeBeamWeapon:       'B',
}

// Symbol returns the cell symbol for a module. A projectile weapon with a
// shot in flight is drawn as a star.
func Symbol(m entity.Module) rune {
	b := m.Base()
	if b.Destroyed() {
		return destroyedCell
	}
	if shot, ok := m.(interface{ InFlight() bool }); ok && shot.InFlight() {
		return shotCell
	}
	r, ok := symbols[m.Type()]
	if !ok {
		r = '?'
	}
	if !b.IsActive() {
		r = rune(strings.ToLower(string(r))[0])
	}
	return r
}

// ShipGrid renders the ship's module grid, one line per row, framed by a
// border.
func ShipGrid(ship *entity.Ship) string {
	buffer := make([][]rune, ship.Height)
	for y := range buffer {
		buffer[y] = []rune(strings.Repeat(string(emptyCell), ship.Width))
	}
	for _, m := range ship.Modules {
		b := m.Base()
		sym := Symbol(m)
		for y := b.Y; y < b.Y+b.Height; y++ {
			for x := b.X; x < b.X+b.Width; x++ {
				buffer[y][x] = sym
			}
		}
	}

	var sb strings.Builder
	sb.WriteString("+" + strings.Repeat("-", ship.Width) + "+\n")
	for _, row := range buffer {
		sb.WriteString("|" + string(row) + "|\n")
	}
	sb.WriteString("+" + strings.Repeat("-", ship.Width) + "+\n")
	return sb.String()
}

// TerminalRenderer prints the battle to a terminal once per turn. It
// satisfies the client's Presenter.
type TerminalRenderer struct {
	out         io.Writer
	clearScreen bool
	closed      atomic.Bool
	ticks       int
}

// NewTerminalRenderer writes to out. With clearScreen set the screen is
// wiped before each turn.
func NewTerminalRenderer(out io.Writer, clearScreen bool) *TerminalRenderer {
	return &TerminalRenderer{out: out, clearScreen: clearScreen}
}

// RenderShip writes a titled grid for ship.
func (r *TerminalRenderer) RenderShip(ship *entity.Ship) {
	fmt.Fprintf(r.out, "%s #%d  hp %d  thrust %d  power %d/%d\n",
		ship.Name, ship.ID, ship.HP(), ship.State.Thrust,
		ship.State.PowerConsumed, ship.State.PowerProduced)
	fmt.Fprint(r.out, ShipGrid(ship))
}

// RequestClose makes ShouldClose report true.
func (r *TerminalRenderer) RequestClose() { r.closed.Store(true) }

func (r *TerminalRenderer) ShouldClose() bool { return r.closed.Load() }

func (r *TerminalRenderer) TurnStarted(turn uint64, ships *battle.Context, player *entity.Ship) {
	if r.clearScreen {
		fmt.Fprint(r.out, "\033[H\033[2J")
	}
	r.ticks = 0
	fmt.Fprintf(r.out, "== turn %d ==\n", turn)
	if player != nil {
		r.RenderShip(player)
	}
	for _, s := range ships.Ships() {
		if player != nil && s.ID == player.ID {
			continue
		}
		r.RenderShip(s)
	}
}

func (r *TerminalRenderer) Tick(int) { r.ticks++ }

func (r *TerminalRenderer) ShipsChanged(out battle.DeltaOutcome) {
	for _, id := range out.Removed {
		fmt.Fprintf(r.out, "ship #%d left\n", id)
	}
	for _, s := range out.Added {
		fmt.Fprintf(r.out, "ship #%d (%s) arrived\n", s.ID, s.Name)
	}
	if out.Player != nil {
		fmt.Fprintf(r.out, "respawned as #%d\n", out.Player.ID)
	}
}

func (r *TerminalRenderer) TurnEnded(turn uint64) {
	fmt.Fprintf(r.out, "turn %d: %d ticks\n", turn, r.ticks)
}
