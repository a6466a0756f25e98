package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// accumulator keeps a running mean and sum of squared deviations (Welford). Partial
// accumulators merge with Chan's formula, so blocks can be reduced in any grouping.
type accumulator struct {
	n    int
	mean float64
	m2   float64
	life float64 // sum of settlement times
}

func (a *accumulator) add(x, t float64) {
	a.n++
	d := x - a.mean
	a.mean += d / float64(a.n)
	a.m2 += d * (x - a.mean)
	a.life += t
}

func (a *accumulator) merge(b accumulator) {
	if b.n == 0 {
		return
	}
	if a.n == 0 {
		*a = b
		return
	}
	n := a.n + b.n
	d := b.mean - a.mean
	a.mean += d * float64(b.n) / float64(n)
	a.m2 += b.m2 + d*d*float64(a.n)*float64(b.n)/float64(n)
	a.n = n
	a.life += b.life
}

// variance is the unbiased sample variance; it needs n ≥ 2.
func (a accumulator) variance() float64 {
	return a.m2 / float64(a.n-1)
}

func (a accumulator) standardError() float64 {
	return math.Sqrt(a.variance() / float64(a.n))
}

// zScore is the two-sided standard normal quantile for the confidence level.
func zScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + confidence/2)
}
