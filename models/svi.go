package models

import (
	"fmt"
	"math"
	"sort"
)

// SVIParams are the raw SVI parameters of one maturity slice:
//
//	w(k) = a + b(ρ(k−m) + √((k−m)² + σ²))
type SVIParams struct {
	A, B, Rho, M, Sigma float64
}

// TotalVariance evaluates the raw SVI formula. With B = 0 the smile is flat at A.
func (p SVIParams) TotalVariance(k float64) float64 {
	x := k - p.M
	return p.A + p.B*(p.Rho*x+math.Sqrt(x*x+p.Sigma*p.Sigma))
}

// MinVariance is the minimum of w over all k: a + bσ√(1−ρ²).
func (p SVIParams) MinVariance() float64 {
	return p.A + p.B*p.Sigma*math.Sqrt(1-p.Rho*p.Rho)
}

// Validate checks the parameter domain and the butterfly guards for a slice at maturity t:
// Lee's wing bound b(1+|ρ|) ≤ 4/t and a non-negative minimum total variance.
func (p SVIParams) Validate(t float64) error {
	for _, v := range []float64{p.A, p.B, p.Rho, p.M, p.Sigma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("svi: non-finite parameter in %+v", p)
		}
	}
	switch {
	case p.B < 0:
		return fmt.Errorf("svi: b must be non-negative, got %v", p.B)
	case math.Abs(p.Rho) >= 1:
		return fmt.Errorf("svi: |rho| must be below 1, got %v", p.Rho)
	case p.Sigma <= 0:
		return fmt.Errorf("svi: sigma must be positive, got %v", p.Sigma)
	}
	if t > 0 && p.B*(1+math.Abs(p.Rho)) > 4/t {
		return fmt.Errorf("svi: wing slope b(1+|rho|)=%v exceeds 4/T=%v", p.B*(1+math.Abs(p.Rho)), 4/t)
	}
	if mv := p.MinVariance(); mv < 0 {
		return fmt.Errorf("svi: minimum total variance %v is negative", mv)
	}
	return nil
}

// SVISlice is one calibrated maturity.
type SVISlice struct {
	Maturity float64
	Params   SVIParams
}

// SVI is a surface of SVI slices, interpolated linearly in total variance between
// maturities and flat in implied vol outside them.
type SVI struct {
	slices []SVISlice
}

// NewSVI validates every slice and the calendar ordering of total variance.
func NewSVI(slices ...SVISlice) (*SVI, error) {
	if len(slices) == 0 {
		return nil, calibrationErr(KindSVI, nil, "no slices")
	}
	sorted := append([]SVISlice(nil), slices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Maturity < sorted[j].Maturity })

	for i, s := range sorted {
		if s.Maturity <= 0 {
			return nil, calibrationErr(KindSVI, nil, "slice maturity must be positive, got %v", s.Maturity)
		}
		if i > 0 && s.Maturity == sorted[i-1].Maturity {
			return nil, calibrationErr(KindSVI, nil, "duplicate slice maturity %v", s.Maturity)
		}
		if err := s.Params.Validate(s.Maturity); err != nil {
			return nil, calibrationErr(KindSVI, err, "no-arbitrage bound violated at T=%v", s.Maturity)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		for k := -1.5; k <= 1.5; k += 0.1 {
			if s.Params.TotalVariance(k) < prev.Params.TotalVariance(k)-1e-12 {
				return nil, calibrationErr(KindSVI, nil, "calendar arbitrage between T=%v and T=%v at k=%.2f", prev.Maturity, s.Maturity, k)
			}
		}
	}
	return &SVI{slices: sorted}, nil
}

func (s *SVI) Kind() SurfaceKind { return KindSVI }

func (s *SVI) Slices() []SVISlice { return append([]SVISlice(nil), s.slices...) }

func (s *SVI) BumpVol(dv float64) Surface { return shiftImplied(s, dv) }

func (s *SVI) TotalVariance(k, t float64) float64 {
	if t <= 0 {
		return 0
	}
	first, last := s.slices[0], s.slices[len(s.slices)-1]
	if t <= first.Maturity {
		return first.Params.TotalVariance(k) * t / first.Maturity
	}
	if t >= last.Maturity {
		return last.Params.TotalVariance(k) * t / last.Maturity
	}
	i := sort.Search(len(s.slices), func(i int) bool { return s.slices[i].Maturity >= t })
	lo, hi := s.slices[i-1], s.slices[i]
	x := (t - lo.Maturity) / (hi.Maturity - lo.Maturity)
	return (1-x)*lo.Params.TotalVariance(k) + x*hi.Params.TotalVariance(k)
}

// SVIOptions tune a slice calibration. Pinned holds parameters kept fixed at the given
// value, keyed "a", "b", "rho", "m" or "sigma".
type SVIOptions struct {
	Initial   *SVIParams
	Pinned    map[string]float64
	Minimizer Minimizer
}

var sviNames = [5]string{"a", "b", "rho", "m", "sigma"}

// CalibrateSVI fits one SVI slice to the quotes of maturity t by least squares in total
// variance. Quotes at other maturities are ignored.
func CalibrateSVI(t float64, quotes []Quote, mkt MarketInputs, opts SVIOptions) (SVISlice, error) {
	pts, err := toVariancePoints(KindSVI, quotes, mkt)
	if err != nil {
		return SVISlice{}, err
	}
	var slice []variancePoint
	for _, p := range pts {
		if p.t == t {
			slice = append(slice, p)
		}
	}
	if len(slice) < 3 {
		return SVISlice{}, calibrationErr(KindSVI, nil, "need at least 3 quotes at T=%v, got %d", t, len(slice))
	}
	if err := checkPinned(opts.Pinned); err != nil {
		return SVISlice{}, err
	}

	init := SVIParams{A: 0.5 * minW(slice), B: 0.1, Rho: -0.3, M: 0, Sigma: 0.1}
	if opts.Initial != nil {
		init = *opts.Initial
	}
	full := toSVIVector(init)
	var free []int
	for i, name := range sviNames {
		if v, ok := opts.Pinned[name]; ok {
			full[i] = toSVIVector(withSVIParam(init, name, v))[i]
			continue
		}
		free = append(free, i)
	}
	if len(free) == 0 {
		params := pin(fromSVIVector(full), opts.Pinned)
		if err := params.Validate(t); err != nil {
			return SVISlice{}, calibrationErr(KindSVI, err, "no-arbitrage bound violated")
		}
		return SVISlice{Maturity: t, Params: params}, nil
	}

	x0 := make([]float64, len(free))
	for i, idx := range free {
		x0[i] = full[idx]
	}
	expand := func(x []float64) SVIParams {
		v := full
		for i, idx := range free {
			v[idx] = x[i]
		}
		return pin(fromSVIVector(v), opts.Pinned)
	}

	objective := func(x []float64) float64 {
		p := expand(x)
		loss := 0.0
		for _, q := range slice {
			d := p.TotalVariance(q.k) - q.w
			loss += d * d
		}
		// scaled so typical variance errors are not lost under the tolerance
		return 1e4 * loss / float64(len(slice))
	}

	minimizer := opts.Minimizer
	if minimizer == nil {
		minimizer = DefaultMinimizer()
	}
	x, _, err := minimizer.Minimize(objective, x0)
	if err != nil {
		return SVISlice{}, calibrationErr(KindSVI, err, "slice T=%v", t)
	}

	params := expand(x)
	if err := params.Validate(t); err != nil {
		return SVISlice{}, calibrationErr(KindSVI, err, "no-arbitrage bound violated at T=%v", t)
	}
	return SVISlice{Maturity: t, Params: params}, nil
}

// CalibrateSVISurface fits one slice per quoted maturity and assembles the surface.
func CalibrateSVISurface(quotes []Quote, mkt MarketInputs, opts SVIOptions) (*SVI, error) {
	pts, err := toVariancePoints(KindSVI, quotes, mkt)
	if err != nil {
		return nil, err
	}
	var slices []SVISlice
	for _, t := range maturities(pts) {
		s, err := CalibrateSVI(t, quotes, mkt, opts)
		if err != nil {
			return nil, err
		}
		slices = append(slices, s)
	}
	return NewSVI(slices...)
}

// SVI parameters are optimised unconstrained: b = e^x, rho = tanh x, sigma = e^x.
func toSVIVector(p SVIParams) [5]float64 {
	return [5]float64{
		p.A,
		math.Log(math.Max(p.B, 1e-12)),
		math.Atanh(math.Max(math.Min(p.Rho, 0.999999), -0.999999)),
		p.M,
		math.Log(math.Max(p.Sigma, 1e-12)),
	}
}

func fromSVIVector(v [5]float64) SVIParams {
	return SVIParams{
		A:     v[0],
		B:     math.Exp(v[1]),
		Rho:   math.Tanh(v[2]),
		M:     v[3],
		Sigma: math.Exp(v[4]),
	}
}

func withSVIParam(p SVIParams, name string, v float64) SVIParams {
	switch name {
	case "a":
		p.A = v
	case "b":
		p.B = v
	case "rho":
		p.Rho = v
	case "m":
		p.M = v
	case "sigma":
		p.Sigma = v
	}
	return p
}

// checkPinned rejects unknown names and values outside the parameter domain. The
// optimiser transform would otherwise clip them to the nearest legal value.
func checkPinned(pinned map[string]float64) error {
	for name := range pinned {
		if !validSVIName(name) {
			return calibrationErr(KindSVI, nil, "unknown pinned parameter %q", name)
		}
	}
	for _, name := range sviNames {
		v, ok := pinned[name]
		if !ok {
			continue
		}
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return calibrationErr(KindSVI, nil, "pinned %s is not finite", name)
		case name == "b" && v < 0:
			return calibrationErr(KindSVI, nil, "pinned b must be non-negative, got %v", v)
		case name == "rho" && math.Abs(v) >= 1:
			return calibrationErr(KindSVI, nil, "pinned |rho| must be below 1, got %v", v)
		case name == "sigma" && v <= 0:
			return calibrationErr(KindSVI, nil, "pinned sigma must be positive, got %v", v)
		}
	}
	return nil
}

// pin writes the pinned values back exactly, undoing the round trip through the
// transformed vector.
func pin(p SVIParams, pinned map[string]float64) SVIParams {
	for name, v := range pinned {
		p = withSVIParam(p, name, v)
	}
	return p
}

func validSVIName(name string) bool {
	for _, n := range sviNames {
		if n == name {
			return true
		}
	}
	return false
}

func minW(pts []variancePoint) float64 {
	m := math.Inf(1)
	for _, p := range pts {
		m = math.Min(m, p.w)
	}
	return m
}
