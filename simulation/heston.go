package simulation

import (
	"math"

	"github.com/bcdannyboy/mcprice/models"
)

// Heston simulates spot and variance with the full-truncation Euler scheme. The raw
// variance state may dip below zero between steps; drift and diffusion only ever see
// max(v, 0), and the path records max(v, 0). Truncation cannot be disabled.
type Heston struct {
	model models.HestonModel
	s0    float64
	dt    float64
	drift []float64
}

func (h *Heston) Factors() int { return 2 }

func (h *Heston) Name() string { return "heston" }

func (h *Heston) Simulate(p *Path, s *Stream, pathIndex int) {
	var z [2]float64
	lnS := math.Log(h.s0)
	v := h.model.V0
	p.Spot[0] = h.s0
	p.Variance[0] = math.Max(v, 0)
	for i := range h.drift {
		s.Normals(pathIndex, i+1, z[:])
		zS, zV := h.model.Correlate(z[0], z[1])
		lnS, v = h.model.Step(lnS, v, h.drift[i], h.dt, zS, zV)
		p.Spot[i+1] = math.Exp(lnS)
		p.Variance[i+1] = math.Max(v, 0)
	}
}
