// Package shipgen builds starting ship layouts procedurally.
package shipgen

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/module"
)

// ErrInvalidLevel is returned for levels below one.
var ErrInvalidLevel = errors.New("ship level must be at least 1")

// beamMinLevel is the first level at which weapons may be beams.
const beamMinLevel = 3

// Generate builds a ship for the given level using rng. The same seed and
// level always produce the same layout.
//
// Engines fill column 0 from the top and bottom rows inwards, solar panels
// plug the gap between them in column 1, and the remaining solar, shield and
// weapon modules are interleaved column by column from column 2. A single 1x2
// command module is then slid left from the ship's right edge as far as free
// space allows.
func Generate(rng *rand.Rand, id entity.ShipID, level int) (*entity.Ship, error) {
	if level < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	ship := entity.NewShip(id, "")
	place := func(t entity.ModuleType, x, y int) error {
		m, err := module.NewAt(t, x, y)
		if err != nil {
			return err
		}
		return ship.AddModule(m)
	}

	height := rng.IntN(max(level, 2)) + max(1, level/2)

	numPower := max(height, rng.IntN(level+1)+1)
	numEngines := min(height, rng.IntN(level+1)/2+1)
	numShields := rng.IntN(level + 1)
	numWeapons := rng.IntN(level+1) + 1

	topEngines := numEngines/2 + numEngines%2
	for i := 0; i < topEngines; i++ {
		if err := place(entity.TypeEngine, 0, i); err != nil {
			return nil, err
		}
	}
	for i := 0; i < numEngines/2; i++ {
		if err := place(entity.TypeEngine, 0, height-1-i); err != nil {
			return nil, err
		}
	}

	for i := 0; i < height-numEngines; i++ {
		if err := place(entity.TypeSolar, 1, topEngines+i); err != nil {
			return nil, err
		}
		numPower--
	}

	counts := []int{numPower, numShields, numWeapons}
	remaining := numPower + numShields + numWeapons
	x, y := 2, 0
	for ; remaining > 0; remaining-- {
		choice := rng.IntN(len(counts))
		for counts[choice] == 0 {
			choice = (choice + 1) % len(counts)
		}

		var t entity.ModuleType
		switch choice {
		case 0:
			t = entity.TypeSolar
		case 1:
			t = entity.TypeShield
		default:
			t = entity.TypeProjectileWeapon
			if level >= beamMinLevel && rng.IntN(4) == 0 {
				t = entity.TypeBeamWeapon
			}
		}
		if err := place(t, x, y); err != nil {
			return nil, err
		}
		counts[choice]--

		y++
		if y >= height {
			y = 0
			x++
		}
	}

	commandX := ship.Width
	commandY := min(height-1, rng.IntN(height+1))
	for ship.IsSpaceFree(commandX-1, commandY, 1, 2) {
		commandX--
	}
	if err := place(entity.TypeCommand, commandX, commandY); err != nil {
		return nil, err
	}

	return ship, nil
}
