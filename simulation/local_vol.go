package simulation

import (
	"math"

	"github.com/bcdannyboy/mcprice/models"
)

// LocalVol steps log-spot with the state-dependent variance σ²_loc(S, t) read at the
// start of each step.
type LocalVol struct {
	surface models.Local
	s0      float64
	dt      float64
	drift   []float64
	times   []float64
}

func (l *LocalVol) Factors() int { return 1 }

func (l *LocalVol) Name() string { return "localvol" }

func (l *LocalVol) Simulate(p *Path, s *Stream, pathIndex int) {
	var z [1]float64
	lnS := math.Log(l.s0)
	p.Spot[0] = l.s0
	for i := range l.drift {
		s.Normals(pathIndex, i+1, z[:])
		v := math.Max(l.surface.LocalVariance(p.Spot[i], l.times[i]), 0)
		lnS += (l.drift[i]-0.5*v)*l.dt + math.Sqrt(v*l.dt)*z[0]
		p.Spot[i+1] = math.Exp(lnS)
	}
}
