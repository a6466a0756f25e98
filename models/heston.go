package models

import (
	"fmt"
	"math"
)

// HestonModel parameterises the two-factor stochastic-volatility dynamics
//
//	dS = (r−q)S dt + √v S dW_S
//	dv = κ(θ−v) dt + ξ√v dW_v,   corr(dW_S, dW_v) = ρ
type HestonModel struct {
	V0    float64 // Initial variance
	Kappa float64 // Mean reversion speed of variance
	Theta float64 // Long-term variance
	Xi    float64 // Volatility of variance
	Rho   float64 // Correlation between asset returns and variance
}

func NewHestonModel(v0, kappa, theta, xi, rho float64) (*HestonModel, error) {
	h := &HestonModel{
		V0:    v0,
		Kappa: kappa,
		Theta: theta,
		Xi:    xi,
		Rho:   rho,
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate enforces kappa, theta, xi > 0, v0 ≥ 0 and |rho| < 1. The Feller condition
// is reported by Feller, not enforced.
func (h *HestonModel) Validate() error {
	switch {
	case !(h.Kappa > 0):
		return fmt.Errorf("heston: kappa must be positive, got %v", h.Kappa)
	case !(h.Theta > 0):
		return fmt.Errorf("heston: theta must be positive, got %v", h.Theta)
	case !(h.Xi > 0):
		return fmt.Errorf("heston: xi must be positive, got %v", h.Xi)
	case !(h.V0 >= 0):
		return fmt.Errorf("heston: v0 must be non-negative, got %v", h.V0)
	case !(math.Abs(h.Rho) < 1):
		return fmt.Errorf("heston: |rho| must be below 1, got %v", h.Rho)
	}
	return nil
}

// Feller reports whether 2κθ ≥ ξ², i.e. whether the variance process stays strictly
// positive in continuous time.
func (h *HestonModel) Feller() bool {
	return 2*h.Kappa*h.Theta >= h.Xi*h.Xi
}

func (h *HestonModel) Kind() SurfaceKind { return KindHeston }

// BumpVol shifts both the spot and long-run volatility levels, √v0 and √θ, by dv.
func (h *HestonModel) BumpVol(dv float64) Surface {
	bumped := *h
	bumped.V0 = sq(math.Max(math.Sqrt(h.V0)+dv, 0))
	bumped.Theta = sq(math.Max(math.Sqrt(h.Theta)+dv, 1e-8))
	return &bumped
}

// Correlate turns two independent standard normals into the (Z_S, Z_v) pair with
// correlation rho via the fixed decomposition Z_v = ρZ_S + √(1−ρ²)Z_⊥.
func (h *HestonModel) Correlate(z1, z2 float64) (float64, float64) {
	return z1, h.Rho*z1 + math.Sqrt(1-h.Rho*h.Rho)*z2
}

// Step advances log-spot and variance by one Euler step with full truncation. v is the
// raw variance state, which may be negative; only max(v, 0) enters the drift and the
// square roots. The returned raw state is what the next step consumes; callers record
// max(vNext, 0) as the usable variance.
func (h *HestonModel) Step(lnS, v, drift, dt, zS, zV float64) (lnSNext, vNext float64) {
	vp := math.Max(v, 0)
	sqrtV := math.Sqrt(vp)
	sqrtDt := math.Sqrt(dt)

	lnSNext = lnS + (drift-0.5*vp)*dt + sqrtV*sqrtDt*zS
	vNext = v + h.Kappa*(h.Theta-vp)*dt + h.Xi*sqrtV*sqrtDt*zV
	return lnSNext, vNext
}

// HestonOptions tune a Heston calibration.
type HestonOptions struct {
	Initial   *HestonModel
	Minimizer Minimizer
}

// CalibrateHeston fits the model to call-equivalent prices of the quotes (put quotes are
// mapped through parity) using the characteristic-function price. The fitted model is
// returned with its Feller flag unchecked; callers log it.
func CalibrateHeston(quotes []Quote, mkt MarketInputs, opts HestonOptions) (*HestonModel, error) {
	pts, err := toVariancePoints(KindHeston, quotes, mkt)
	if err != nil {
		return nil, err
	}
	if len(pts) < 5 {
		return nil, calibrationErr(KindHeston, nil, "need at least 5 quotes, got %d", len(pts))
	}

	type target struct {
		strike, t, price, df float64
	}
	targets := make([]target, len(pts))
	for i, p := range pts {
		f := mkt.Forward(p.t)
		df := mkt.discount(p.t)
		k := f * math.Exp(p.k)
		targets[i] = target{strike: k, t: p.t, price: BlackPrice(f, k, p.w, df, true), df: df}
	}

	initial := HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.4, Rho: -0.5} // Initial guess
	if opts.Initial != nil {
		initial = *opts.Initial
	}
	x0 := []float64{
		math.Log(math.Max(initial.V0, 1e-6)),
		math.Log(initial.Kappa),
		math.Log(initial.Theta),
		math.Log(initial.Xi),
		math.Atanh(initial.Rho),
	}
	decode := func(x []float64) HestonModel {
		return HestonModel{
			V0:    math.Exp(x[0]),
			Kappa: math.Exp(x[1]),
			Theta: math.Exp(x[2]),
			Xi:    math.Exp(x[3]),
			Rho:   math.Tanh(x[4]),
		}
	}

	objective := func(x []float64) float64 {
		model := decode(x)
		if model.Kappa > 50 || model.Xi > 5 || model.V0 > 4 || model.Theta > 4 {
			return math.Inf(1)
		}
		mse := 0.0
		for _, tg := range targets {
			r := -math.Log(tg.df) / tg.t
			modelPrice := model.CallPrice(mkt.Spot, tg.strike, r, mkt.DividendYield, tg.t)
			d := (modelPrice - tg.price) / mkt.Spot
			mse += d * d
		}
		return 1e4 * mse / float64(len(targets))
	}

	minimizer := opts.Minimizer
	if minimizer == nil {
		minimizer = DefaultMinimizer()
	}
	x, _, err := minimizer.Minimize(objective, x0)
	if err != nil {
		return nil, calibrationErr(KindHeston, err, "price fit")
	}
	fitted := decode(x)
	if err := fitted.Validate(); err != nil {
		return nil, calibrationErr(KindHeston, err, "fitted parameters out of bounds")
	}
	return &fitted, nil
}

func sq(x float64) float64 { return x * x }
