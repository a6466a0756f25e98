package simulation

import (
	"math"
	"sort"
)

// Path is one simulated trajectory: NumSteps+1 states including t = 0. Variance is nil
// for one-factor processes. Engines reuse a single Path per worker, so consumers must
// not retain it past the callback that received it.
type Path struct {
	Times    []float64
	Spot     []float64
	Variance []float64
}

// NewPath allocates a buffer for grid with room for the given number of factors.
func NewPath(g Grid, factors int) *Path {
	n := g.NumSteps + 1
	p := &Path{
		Times: make([]float64, n),
		Spot:  make([]float64, n),
	}
	for i := range p.Times {
		p.Times[i] = g.Time(i)
	}
	if factors > 1 {
		p.Variance = make([]float64, n)
	}
	return p
}

func (p *Path) Len() int { return len(p.Times) }

func (p *Path) Horizon() float64 { return p.Times[len(p.Times)-1] }

func (p *Path) Terminal() float64 { return p.Spot[len(p.Spot)-1] }

// Index is the step whose time is nearest to t, clamped to the path.
func (p *Path) Index(t float64) int {
	n := len(p.Times)
	if t <= p.Times[0] {
		return 0
	}
	if t >= p.Times[n-1] {
		return n - 1
	}
	i := sort.SearchFloat64s(p.Times, t)
	if t-p.Times[i-1] < p.Times[i]-t {
		return i - 1
	}
	return i
}

// At is the spot on the step nearest to t.
func (p *Path) At(t float64) float64 { return p.Spot[p.Index(t)] }

// Finite reports whether every recorded state is finite.
func (p *Path) Finite() bool {
	for _, s := range p.Spot {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return false
		}
	}
	for _, v := range p.Variance {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p *Path) Clone() *Path {
	c := &Path{
		Times: append([]float64(nil), p.Times...),
		Spot:  append([]float64(nil), p.Spot...),
	}
	if p.Variance != nil {
		c.Variance = append([]float64(nil), p.Variance...)
	}
	return c
}
