package simulation

import (
	"math"
)

// Grid is the discretisation of one pricing request.
type Grid struct {
	NumPaths int
	NumSteps int
	Horizon  float64
	Seed     uint64
}

func (g Grid) Validate() error {
	switch {
	case g.NumPaths < 1:
		return Errorf("number of paths must be positive, got %d", g.NumPaths)
	case g.NumSteps < 1:
		return Errorf("number of steps must be positive, got %d", g.NumSteps)
	case !(g.Horizon > 0) || math.IsInf(g.Horizon, 0):
		return Errorf("horizon must be positive and finite, got %v", g.Horizon)
	}
	return nil
}

func (g Grid) Dt() float64 { return g.Horizon / float64(g.NumSteps) }

func (g Grid) Time(i int) float64 {
	if i >= g.NumSteps {
		return g.Horizon
	}
	return float64(i) * g.Dt()
}

// Index is the grid step nearest to t, clamped to [0, NumSteps].
func (g Grid) Index(t float64) int {
	i := int(math.Round(t / g.Dt()))
	if i < 0 {
		return 0
	}
	if i > g.NumSteps {
		return g.NumSteps
	}
	return i
}

// OnGrid reports whether t coincides with a grid step, to within a millionth of a step.
func (g Grid) OnGrid(t float64) bool {
	return math.Abs(g.Time(g.Index(t))-t) <= 1e-6*g.Dt()
}

// WithHorizon keeps the seed and step count so a shortened run reuses the same draws.
func (g Grid) WithHorizon(h float64) Grid {
	g.Horizon = h
	return g
}

// WithPaths keeps everything but the path count.
func (g Grid) WithPaths(n int) Grid {
	g.NumPaths = n
	return g
}
