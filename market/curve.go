package market

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// YieldCurve is a zero-rate curve keyed by tenor in years. Rates between tenors are
// linearly interpolated, outside the tenor range they are held flat.
type YieldCurve struct {
	tenors []float64
	rates  []float64
	pl     *interp.PiecewiseLinear
}

// NewYieldCurve builds a curve from strictly increasing positive tenors and their zero rates.
func NewYieldCurve(tenors, rates []float64) (*YieldCurve, error) {
	if len(tenors) == 0 || len(tenors) != len(rates) {
		return nil, fmt.Errorf("yield curve: need matching non-empty tenors and rates, got %d and %d", len(tenors), len(rates))
	}
	for i, t := range tenors {
		if t <= 0 || math.IsNaN(t) {
			return nil, fmt.Errorf("yield curve: tenor %d is not positive: %v", i, t)
		}
		if i > 0 && t <= tenors[i-1] {
			return nil, fmt.Errorf("yield curve: tenors not strictly increasing at %d (%v <= %v)", i, t, tenors[i-1])
		}
		if math.IsNaN(rates[i]) || math.IsInf(rates[i], 0) {
			return nil, fmt.Errorf("yield curve: rate %d is not finite", i)
		}
	}

	c := &YieldCurve{
		tenors: append([]float64(nil), tenors...),
		rates:  append([]float64(nil), rates...),
	}
	if len(c.tenors) > 1 {
		pl := &interp.PiecewiseLinear{}
		if err := pl.Fit(c.tenors, c.rates); err != nil {
			return nil, fmt.Errorf("yield curve: %w", err)
		}
		c.pl = pl
	}
	return c, nil
}

// Flat returns a single-rate curve.
func Flat(r float64) *YieldCurve {
	return &YieldCurve{tenors: []float64{1}, rates: []float64{r}}
}

func (c *YieldCurve) Tenors() []float64 { return append([]float64(nil), c.tenors...) }
func (c *YieldCurve) Rates() []float64  { return append([]float64(nil), c.rates...) }

// Rate returns the continuously compounded zero rate for maturity t.
func (c *YieldCurve) Rate(t float64) float64 {
	if c.pl == nil {
		return c.rates[0]
	}
	first, last := c.tenors[0], c.tenors[len(c.tenors)-1]
	switch {
	case t <= first:
		return c.rates[0]
	case t >= last:
		return c.rates[len(c.rates)-1]
	}
	return c.pl.Predict(t)
}

// DiscountFactor is exp(-r(t)·t). Non-positive t discounts nothing.
func (c *YieldCurve) DiscountFactor(t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(-c.Rate(t) * t)
}

// ForwardRate is the continuously compounded forward rate between t1 < t2.
func (c *YieldCurve) ForwardRate(t1, t2 float64) float64 {
	if t2 <= t1 {
		return c.Rate(t1)
	}
	return (c.Rate(t2)*t2 - c.Rate(t1)*math.Max(t1, 0)) / (t2 - math.Max(t1, 0))
}

// Shift returns a parallel-shifted copy of the curve.
func (c *YieldCurve) Shift(dr float64) *YieldCurve {
	rates := make([]float64, len(c.rates))
	for i, r := range c.rates {
		rates[i] = r + dr
	}
	if len(c.tenors) == 1 {
		return &YieldCurve{tenors: append([]float64(nil), c.tenors...), rates: rates}
	}
	shifted, err := NewYieldCurve(c.tenors, rates)
	if err != nil {
		// tenors were validated on construction
		panic(err)
	}
	return shifted
}
