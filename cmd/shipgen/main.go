// cmd/shipgen/main.go
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
	"github.com/opd-ai/go-shipbattle/pkg/render"
	"github.com/opd-ai/go-shipbattle/pkg/shipgen"
)

func main() {
	seed := flag.Uint64("seed", 1, "Generator seed")
	level := flag.Int("level", 3, "Ship level")
	count := flag.Int("count", 1, "Number of ships to generate")
	flag.Parse()

	rng := rand.New(rand.NewPCG(*seed, *seed))
	r := render.NewTerminalRenderer(os.Stdout, false)

	for i := range *count {
		ship, err := shipgen.Generate(rng, entity.ShipID(i+1), *level)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ship.Name = fmt.Sprintf("level-%d", *level)

		wanted := make([]bool, len(ship.Modules))
		for j := range wanted {
			wanted[j] = true
		}
		if rejected := ship.ApplyPowerPlan(wanted); len(rejected) > 0 {
			fmt.Printf("unpowered modules: %v\n", rejected)
		}
		r.RenderShip(ship)
		fmt.Println()
	}
}
