package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

func TestAccumulatorMergeMatchesSequential(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	xs := make([]float64, 1000)
	for i := range xs {
		xs[i] = rng.NormFloat64()*3 + 10
	}

	var all accumulator
	for _, x := range xs {
		all.add(x, 1)
	}

	parts := make([]accumulator, 7)
	for i, x := range xs {
		parts[i*len(parts)/len(xs)].add(x, 1)
	}
	var merged accumulator
	merged.merge(accumulator{})
	for _, p := range parts {
		merged.merge(p)
	}

	assert.Equal(t, all.n, merged.n)
	assert.InDelta(t, all.mean, merged.mean, 1e-12)
	assert.InDelta(t, all.variance(), merged.variance(), 1e-9)
	assert.InDelta(t, all.life, merged.life, 1e-9)
}

func TestAccumulatorVariance(t *testing.T) {
	t.Parallel()

	var a accumulator
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		a.add(x, 0)
	}
	assert.InDelta(t, 5.0, a.mean, 1e-12)
	assert.InDelta(t, 32.0/7, a.variance(), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7/8), a.standardError(), 1e-12)
}

func TestZScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.95, 1.959964},
		{0.99, 2.575829},
		{0.6827, 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, zScore(tt.confidence), 1e-3)
	}
}
