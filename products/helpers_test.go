package products

import (
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

type flatRate float64

func (r flatRate) DiscountFactor(t float64) float64 { return math.Exp(-float64(r) * t) }

// pathOf builds an evenly spaced path over [0, horizon] through the given spots.
func pathOf(horizon float64, spots ...float64) *simulation.Path {
	g := simulation.Grid{NumPaths: 1, NumSteps: len(spots) - 1, Horizon: horizon}
	p := simulation.NewPath(g, 1)
	copy(p.Spot, spots)
	return p
}
