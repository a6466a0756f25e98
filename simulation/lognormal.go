package simulation

import "math"

// Lognormal is one-factor geometric Brownian motion stepped exactly in log space:
//
//	ln S(t+Δ) = ln S(t) + (μ_i − v_i/2)Δ + √(v_i Δ)·Z
//
// with per-step drift μ_i and deterministic variance v_i.
type Lognormal struct {
	s0       float64
	dt       float64
	drift    []float64
	variance []float64
}

func (l *Lognormal) Factors() int { return 1 }

func (l *Lognormal) Name() string { return "lognormal" }

func (l *Lognormal) Simulate(p *Path, s *Stream, pathIndex int) {
	var z [1]float64
	lnS := math.Log(l.s0)
	p.Spot[0] = l.s0
	for i := range l.drift {
		s.Normals(pathIndex, i+1, z[:])
		v := l.variance[i]
		lnS += (l.drift[i]-0.5*v)*l.dt + math.Sqrt(v*l.dt)*z[0]
		p.Spot[i+1] = math.Exp(lnS)
	}
}
