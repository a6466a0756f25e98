package models

import (
	"fmt"
	"math"
	"sort"
)

// LocalVol is a Dupire local-variance grid over (strike, maturity).
//
// Experimental: the construction differentiates call prices twice in strike and is
// fragile wherever the smile has little convexity. BuildLocalVol reports that as a
// LocalVolError instead of silently correcting it.
type LocalVol struct {
	Strikes  []float64
	Times    []float64
	Variance [][]float64 // [time][strike]

	// Unstable describes the nodes BuildLocalVol clamped while staying within
	// MaxBadFraction. Nil when every node was stable.
	Unstable *LocalVolError
}

// NewLocalVol validates a grid of instantaneous variances.
func NewLocalVol(strikes, times []float64, variance [][]float64) (*LocalVol, error) {
	if len(strikes) < 2 || len(times) < 1 {
		return nil, fmt.Errorf("local vol: need at least 2 strikes and 1 time, got %d and %d", len(strikes), len(times))
	}
	if !sort.Float64sAreSorted(strikes) || !sort.Float64sAreSorted(times) {
		return nil, fmt.Errorf("local vol: strikes and times must be increasing")
	}
	if len(variance) != len(times) {
		return nil, fmt.Errorf("local vol: %d variance rows for %d times", len(variance), len(times))
	}
	lv := &LocalVol{
		Strikes:  removeDuplicates(append([]float64(nil), strikes...)),
		Times:    removeDuplicates(append([]float64(nil), times...)),
		Variance: make([][]float64, len(variance)),
	}
	if len(lv.Strikes) != len(strikes) || len(lv.Times) != len(times) {
		return nil, fmt.Errorf("local vol: duplicate strikes or times")
	}
	for i, row := range variance {
		if len(row) != len(strikes) {
			return nil, fmt.Errorf("local vol: row %d has %d values for %d strikes", i, len(row), len(strikes))
		}
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("local vol: invalid variance %v at (%d, %d)", v, i, j)
			}
		}
		lv.Variance[i] = append([]float64(nil), row...)
	}
	return lv, nil
}

func (lv *LocalVol) Kind() SurfaceKind { return KindLocalVol }

// BumpVol shifts local volatility, not variance, by dv at every node.
func (lv *LocalVol) BumpVol(dv float64) Surface {
	bumped := &LocalVol{Strikes: lv.Strikes, Times: lv.Times, Variance: make([][]float64, len(lv.Variance)), Unstable: lv.Unstable}
	for i, row := range lv.Variance {
		bumped.Variance[i] = make([]float64, len(row))
		for j, v := range row {
			bumped.Variance[i][j] = sq(math.Max(math.Sqrt(v)+dv, 0))
		}
	}
	return bumped
}

// LocalVariance interpolates bilinearly in (spot, time), holding the edges flat.
func (lv *LocalVol) LocalVariance(s, t float64) float64 {
	ti, tx := bracket(lv.Times, t)
	si, sx := bracket(lv.Strikes, s)

	row := func(i int) float64 {
		r := lv.Variance[i]
		if si+1 >= len(r) {
			return r[si]
		}
		return (1-sx)*r[si] + sx*r[si+1]
	}
	if ti+1 >= len(lv.Times) {
		return row(ti)
	}
	return (1-tx)*row(ti) + tx*row(ti+1)
}

// bracket finds i with xs[i] <= x < xs[i+1] and the fractional position within it,
// clamping to the ends of the grid.
func bracket(xs []float64, x float64) (int, float64) {
	n := len(xs)
	if n == 1 || x <= xs[0] {
		return 0, 0
	}
	if x >= xs[n-1] {
		return n - 1, 0
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return i, 0
	}
	i--
	i = clamp(i, 0, n-2)
	return i, (x - xs[i]) / (xs[i+1] - xs[i])
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func removeDuplicates(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	result := []float64{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}
	return result
}

// LocalVolOptions control the Dupire construction.
type LocalVolOptions struct {
	// Epsilon is the floor under the convexity denominator ½K²∂²C/∂K².
	Epsilon float64
	// MaxBadFraction is the share of clamped nodes tolerated before failing.
	MaxBadFraction float64
	// StrikeBump and TimeBump are relative/absolute finite-difference steps.
	StrikeBump float64
	TimeBump   float64
}

func (o LocalVolOptions) withDefaults() LocalVolOptions {
	if o.Epsilon <= 0 {
		o.Epsilon = 1e-8
	}
	if o.StrikeBump <= 0 {
		o.StrikeBump = 0.01
	}
	if o.TimeBump <= 0 {
		o.TimeBump = 1.0 / 365
	}
	return o
}

// BuildLocalVol derives local variance from an implied surface with Dupire's formula
//
//	σ²(K,T) = (∂C/∂T + (r−q)K ∂C/∂K + qC) / (½K² ∂²C/∂K²)
//
// by central finite differences of the call-price surface sampled around each node.
// Nodes whose denominator falls below Epsilon are clamped to it, nodes with a negative
// numerator are floored at zero variance; both count as unstable. If the unstable share
// exceeds MaxBadFraction the grid is discarded and a *LocalVolError returned; otherwise
// the same report is kept on the grid as Unstable.
func BuildLocalVol(src Implied, mkt MarketInputs, strikes, times []float64, opts LocalVolOptions) (*LocalVol, error) {
	opts = opts.withDefaults()
	if len(strikes) < 2 || len(times) < 1 {
		return nil, fmt.Errorf("local vol: need at least 2 strikes and 1 time")
	}
	for _, t := range times {
		if t <= 0 {
			return nil, fmt.Errorf("local vol: times must be positive, got %v", t)
		}
	}

	call := func(k, t float64) float64 {
		f := mkt.Forward(t)
		w := src.TotalVariance(math.Log(k/f), t)
		return BlackPrice(f, k, w, mkt.discount(t), true)
	}

	var lvErr *LocalVolError
	variance := make([][]float64, len(times))
	for i, t := range times {
		variance[i] = make([]float64, len(strikes))
		ht := math.Min(opts.TimeBump, 0.5*t)
		r := forwardRate(mkt, t, ht)
		q := mkt.DividendYield
		for j, k := range strikes {
			hk := opts.StrikeBump * k
			c := call(k, t)
			cUp, cDn := call(k+hk, t), call(k-hk, t)
			dCdT := (call(k, t+ht) - call(k, t-ht)) / (2 * ht)
			dCdK := (cUp - cDn) / (2 * hk)
			d2CdK2 := (cUp - 2*c + cDn) / (hk * hk)

			num := dCdT + (r-q)*k*dCdK + q*c
			den := 0.5 * k * k * d2CdK2
			bad := false
			if den < opts.Epsilon {
				den = opts.Epsilon
				bad = true
			}
			v := num / den
			if num < 0 {
				v = 0
				bad = true
			}
			if bad {
				if lvErr == nil {
					lvErr = &LocalVolError{Epsilon: opts.Epsilon, Strike: k, Maturity: t}
				}
				lvErr.BadNodes++
			}
			variance[i][j] = v
		}
	}

	total := len(strikes) * len(times)
	if lvErr != nil {
		lvErr.TotalNodes = total
		if float64(lvErr.BadNodes) > opts.MaxBadFraction*float64(total) {
			return nil, lvErr
		}
	}
	lv, err := NewLocalVol(strikes, times, variance)
	if err != nil {
		return nil, err
	}
	lv.Unstable = lvErr
	return lv, nil
}

func forwardRate(mkt MarketInputs, t, h float64) float64 {
	lo := math.Max(t-h, 0)
	return (math.Log(mkt.discount(lo)) - math.Log(mkt.discount(t+h))) / (t + h - lo)
}
