package models

import (
	"fmt"
	"math"
	"sort"
)

// SSVI is the surface SVI of Gatheral and Jacquier with a power-law shape function
//
//	φ(θ) = η / (θ^γ (1+θ)^(1−γ))
//	w(k, θ) = θ/2 · (1 + ρφk + √((φk+ρ)² + 1−ρ²))
//
// over an ATM total-variance term structure θ(T) that must be non-decreasing.
type SSVI struct {
	Rho   float64
	Eta   float64
	Gamma float64

	maturities []float64
	thetas     []float64
}

// NewSSVI validates shape parameters, the calendar monotonicity of thetas and the
// butterfly conditions θφ(θ)(1+|ρ|) ≤ 4 and θφ(θ)²(1+|ρ|) ≤ 4 at every calibrated θ.
func NewSSVI(rho, eta, gamma float64, maturities, thetas []float64) (*SSVI, error) {
	s := &SSVI{
		Rho:        rho,
		Eta:        eta,
		Gamma:      gamma,
		maturities: append([]float64(nil), maturities...),
		thetas:     append([]float64(nil), thetas...),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SSVI) validate() error {
	switch {
	case math.Abs(s.Rho) >= 1 || math.IsNaN(s.Rho):
		return calibrationErr(KindSSVI, nil, "|rho| must be below 1, got %v", s.Rho)
	case s.Eta <= 0 || math.IsNaN(s.Eta):
		return calibrationErr(KindSSVI, nil, "eta must be positive, got %v", s.Eta)
	case s.Gamma <= 0 || s.Gamma > 1 || math.IsNaN(s.Gamma):
		return calibrationErr(KindSSVI, nil, "gamma must be in (0, 1], got %v", s.Gamma)
	case len(s.maturities) == 0 || len(s.maturities) != len(s.thetas):
		return calibrationErr(KindSSVI, nil, "need matching maturities and ATM variances")
	}
	for i := range s.maturities {
		if s.maturities[i] <= 0 || s.thetas[i] <= 0 {
			return calibrationErr(KindSSVI, nil, "maturity and ATM variance must be positive at index %d", i)
		}
		if i == 0 {
			continue
		}
		if s.maturities[i] <= s.maturities[i-1] {
			return calibrationErr(KindSSVI, nil, "maturities not increasing at index %d", i)
		}
		if s.thetas[i] < s.thetas[i-1] {
			return calibrationErr(KindSSVI, nil, "ATM total variance decreases from %v (T=%v) to %v (T=%v)",
				s.thetas[i-1], s.maturities[i-1], s.thetas[i], s.maturities[i])
		}
	}
	for i, th := range s.thetas {
		phi := s.phi(th)
		if th*phi*(1+math.Abs(s.Rho)) > 4+1e-12 || th*phi*phi*(1+math.Abs(s.Rho)) > 4+1e-12 {
			return calibrationErr(KindSSVI, nil, "butterfly condition violated at T=%v", s.maturities[i])
		}
	}
	return nil
}

func (s *SSVI) Kind() SurfaceKind { return KindSSVI }

func (s *SSVI) BumpVol(dv float64) Surface { return shiftImplied(s, dv) }

func (s *SSVI) Maturities() []float64 { return append([]float64(nil), s.maturities...) }

func (s *SSVI) ATMVariances() []float64 { return append([]float64(nil), s.thetas...) }

func (s *SSVI) phi(theta float64) float64 {
	return s.Eta / (math.Pow(theta, s.Gamma) * math.Pow(1+theta, 1-s.Gamma))
}

// Theta is the ATM total variance at t: linear between calibrated maturities, flat in
// implied vol outside them.
func (s *SSVI) Theta(t float64) float64 {
	if t <= 0 {
		return 0
	}
	n := len(s.maturities)
	if t <= s.maturities[0] {
		return s.thetas[0] * t / s.maturities[0]
	}
	if t >= s.maturities[n-1] {
		return s.thetas[n-1] * t / s.maturities[n-1]
	}
	i := sort.SearchFloat64s(s.maturities, t)
	x := (t - s.maturities[i-1]) / (s.maturities[i] - s.maturities[i-1])
	return (1-x)*s.thetas[i-1] + x*s.thetas[i]
}

func (s *SSVI) TotalVariance(k, t float64) float64 {
	th := s.Theta(t)
	if th <= 0 {
		return 0
	}
	return ssviVariance(k, th, s.Rho, s.phi(th))
}

func ssviVariance(k, theta, rho, phi float64) float64 {
	pk := phi * k
	return 0.5 * theta * (1 + rho*pk + math.Sqrt((pk+rho)*(pk+rho)+1-rho*rho))
}

// WithSlice returns a copy with the ATM variance of maturity t set to theta, inserting
// the maturity when it is new. It fails if the term structure would decrease.
func (s *SSVI) WithSlice(t, theta float64) (*SSVI, error) {
	if t <= 0 || theta <= 0 {
		return nil, calibrationErr(KindSSVI, nil, "slice needs positive maturity and variance, got T=%v theta=%v", t, theta)
	}
	ms := append([]float64(nil), s.maturities...)
	ths := append([]float64(nil), s.thetas...)
	i := sort.SearchFloat64s(ms, t)
	if i < len(ms) && ms[i] == t {
		ths[i] = theta
	} else {
		ms = append(ms, 0)
		ths = append(ths, 0)
		copy(ms[i+1:], ms[i:])
		copy(ths[i+1:], ths[i:])
		ms[i], ths[i] = t, theta
	}
	return NewSSVI(s.Rho, s.Eta, s.Gamma, ms, ths)
}

// RecalibrateSlice refits the ATM variance of one maturity against its quotes, keeping
// the shared shape parameters, and fails if the result breaks calendar monotonicity.
func (s *SSVI) RecalibrateSlice(t float64, quotes []Quote, mkt MarketInputs, minimizer Minimizer) (*SSVI, error) {
	pts, err := toVariancePoints(KindSSVI, quotes, mkt)
	if err != nil {
		return nil, err
	}
	var slice []variancePoint
	for _, p := range pts {
		if p.t == t {
			slice = append(slice, p)
		}
	}
	if len(slice) == 0 {
		return nil, calibrationErr(KindSSVI, nil, "no quotes at T=%v", t)
	}
	if minimizer == nil {
		minimizer = DefaultMinimizer()
	}

	guess := atmVariance(slice, t)
	if guess <= 0 {
		guess = s.Theta(t)
	}
	objective := func(x []float64) float64 {
		th := math.Exp(x[0])
		phi := s.phi(th)
		loss := 0.0
		for _, q := range slice {
			d := ssviVariance(q.k, th, s.Rho, phi) - q.w
			loss += d * d
		}
		return 1e4 * loss / float64(len(slice))
	}
	x, _, err := minimizer.Minimize(objective, []float64{math.Log(guess)})
	if err != nil {
		return nil, calibrationErr(KindSSVI, err, "slice T=%v", t)
	}
	return s.WithSlice(t, math.Exp(x[0]))
}

// SSVIOptions tune a full-surface calibration.
type SSVIOptions struct {
	Minimizer Minimizer
}

// CalibrateSSVI jointly fits ρ, η, γ and the ATM term structure to all quotes. The thetas
// are parameterised as cumulative positive increments so the fit itself can never produce
// a decreasing term structure.
func CalibrateSSVI(quotes []Quote, mkt MarketInputs, opts SSVIOptions) (*SSVI, error) {
	pts, err := toVariancePoints(KindSSVI, quotes, mkt)
	if err != nil {
		return nil, err
	}
	ts := maturities(pts)
	if len(pts) < 3 {
		return nil, calibrationErr(KindSSVI, nil, "need at least 3 quotes, got %d", len(pts))
	}

	// x = [atanh ρ, ln η, logit γ, ln Δθ_1 ... ln Δθ_n]
	x0 := []float64{math.Atanh(-0.3), math.Log(0.5), 0}
	prev := 0.0
	for _, t := range ts {
		th := atmVariance(pts, t)
		inc := math.Max(th-prev, 1e-4)
		x0 = append(x0, math.Log(inc))
		prev += inc
	}

	decode := func(x []float64) (rho, eta, gamma float64, thetas []float64) {
		rho = math.Tanh(x[0])
		eta = math.Exp(x[1])
		gamma = 1 / (1 + math.Exp(-x[2]))
		thetas = make([]float64, len(ts))
		acc := 0.0
		for i := range ts {
			acc += math.Exp(x[3+i])
			thetas[i] = acc
		}
		return
	}
	index := make(map[float64]int, len(ts))
	for i, t := range ts {
		index[t] = i
	}

	objective := func(x []float64) float64 {
		rho, eta, gamma, thetas := decode(x)
		s := SSVI{Rho: rho, Eta: eta, Gamma: gamma}
		loss := 0.0
		for _, q := range pts {
			th := thetas[index[q.t]]
			d := ssviVariance(q.k, th, rho, s.phi(th)) - q.w
			loss += d * d
		}
		return 1e4 * loss / float64(len(pts))
	}

	minimizer := opts.Minimizer
	if minimizer == nil {
		minimizer = DefaultMinimizer()
	}
	x, _, err := minimizer.Minimize(objective, x0)
	if err != nil {
		return nil, calibrationErr(KindSSVI, err, "surface fit")
	}
	rho, eta, gamma, thetas := decode(x)
	surface, err := NewSSVI(rho, eta, gamma, ts, thetas)
	if err != nil {
		return nil, fmt.Errorf("calibrated parameters rejected: %w", err)
	}
	return surface, nil
}
