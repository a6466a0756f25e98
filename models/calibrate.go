package models

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/optimize"
)

// Objective is a scalar loss over a parameter vector.
type Objective func(x []float64) float64

// Minimizer is the optimisation capability calibration depends on. Implementations
// return ErrNotConverged (possibly wrapped) when they stop on a budget.
type Minimizer interface {
	Minimize(f Objective, x0 []float64) (x []float64, fx float64, err error)
}

// NelderMead minimises with gonum's simplex method under a bounded iteration budget.
type NelderMead struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultMinimizer is the optimiser used when a calibration request does not inject one.
func DefaultMinimizer() NelderMead {
	return NelderMead{MaxIterations: 4000, Tolerance: 1e-12}
}

func (nm NelderMead) Minimize(f Objective, x0 []float64) ([]float64, float64, error) {
	iters := nm.MaxIterations
	if iters <= 0 {
		iters = 4000
	}
	tol := nm.Tolerance
	if tol <= 0 {
		tol = 1e-12
	}

	problem := optimize.Problem{Func: f}
	settings := &optimize.Settings{
		MajorIterations: iters,
		FuncEvaluations: 20 * iters,
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Relative:   tol,
			Iterations: 200,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, math.NaN(), fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	switch result.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.GradientThreshold:
	default:
		return nil, result.F, fmt.Errorf("%w: status %v after %d iterations", ErrNotConverged, result.Status, result.Stats.MajorIterations)
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return nil, result.F, fmt.Errorf("%w: non-finite objective", ErrNotConverged)
	}
	return result.X, result.F, nil
}

// Quote is one market observation. Either ImpliedVol or Price must be set; prices are
// converted to Black-Scholes vols against the calibration market.
type Quote struct {
	Strike     float64
	Maturity   float64
	ImpliedVol float64
	Price      float64
	IsCall     bool
}

// MarketInputs is what calibration needs from the market, kept as plain values and
// functions so this package does not depend on the snapshot type.
type MarketInputs struct {
	Spot           float64
	DividendYield  float64
	DiscountFactor func(t float64) float64
}

func (m MarketInputs) discount(t float64) float64 {
	if m.DiscountFactor == nil {
		return 1
	}
	return m.DiscountFactor(t)
}

// Forward is the forward level of the underlying at t.
func (m MarketInputs) Forward(t float64) float64 {
	return m.Spot * math.Exp(-m.DividendYield*t) / m.discount(t)
}

// ZeroRate is the continuously compounded rate implied by the discount function.
func (m MarketInputs) ZeroRate(t float64) float64 {
	if t <= 0 {
		return 0
	}
	return -math.Log(m.discount(t)) / t
}

// variancePoint is a quote reduced to (log-moneyness, maturity, total variance).
type variancePoint struct {
	k, t, w float64
}

func toVariancePoints(kind SurfaceKind, quotes []Quote, mkt MarketInputs) ([]variancePoint, error) {
	if len(quotes) == 0 {
		return nil, calibrationErr(kind, nil, "no market quotes")
	}
	pts := make([]variancePoint, 0, len(quotes))
	for i, q := range quotes {
		if q.Strike <= 0 || q.Maturity <= 0 {
			return nil, calibrationErr(kind, nil, "quote %d has non-positive strike or maturity", i)
		}
		vol := q.ImpliedVol
		if vol <= 0 {
			if q.Price <= 0 {
				return nil, calibrationErr(kind, nil, "quote %d has neither implied vol nor price", i)
			}
			var err error
			vol, err = ImpliedVolatility(q.Price, mkt.Spot, q.Strike, q.Maturity, mkt.ZeroRate(q.Maturity), mkt.DividendYield, q.IsCall)
			if err != nil {
				return nil, calibrationErr(kind, err, "quote %d", i)
			}
		}
		pts = append(pts, variancePoint{
			k: math.Log(q.Strike / mkt.Forward(q.Maturity)),
			t: q.Maturity,
			w: vol * vol * q.Maturity,
		})
	}
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].t != pts[j].t {
			return pts[i].t < pts[j].t
		}
		return pts[i].k < pts[j].k
	})
	return pts, nil
}

// maturities returns the distinct maturities of sorted points.
func maturities(pts []variancePoint) []float64 {
	var ts []float64
	for _, p := range pts {
		if len(ts) == 0 || p.t != ts[len(ts)-1] {
			ts = append(ts, p.t)
		}
	}
	return ts
}

// atmVariance estimates ATM total variance of one maturity by linear interpolation in k.
func atmVariance(pts []variancePoint, t float64) float64 {
	var below, above *variancePoint
	for i := range pts {
		p := &pts[i]
		if p.t != t {
			continue
		}
		if p.k <= 0 && (below == nil || p.k > below.k) {
			below = p
		}
		if p.k >= 0 && (above == nil || p.k < above.k) {
			above = p
		}
	}
	switch {
	case below != nil && above != nil && above.k != below.k:
		x := -below.k / (above.k - below.k)
		return below.w + x*(above.w-below.w)
	case below != nil:
		return below.w
	case above != nil:
		return above.w
	}
	return 0
}
