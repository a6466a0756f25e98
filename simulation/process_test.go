package simulation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/models"
)

func TestNewProcessDispatch(t *testing.T) {
	t.Parallel()

	g := Grid{NumPaths: 2, NumSteps: 4, Horizon: 1}
	heston := &models.HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5}
	lv, err := models.NewLocalVol([]float64{50, 150}, []float64{1}, [][]float64{{0.04, 0.04}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		surface models.Surface
		want    string
		factors int
	}{
		{"flat", models.Flat{Sigma: 0.2}, "lognormal", 1},
		{"heston", heston, "heston", 2},
		{"local vol", lv, "localvol", 1},
	}
	for _, tt := range tests {
		proc, err := NewProcess(newSnapshot(t, 100, 0.02, 0, tt.surface), g)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, proc.Name())
		assert.Equal(t, tt.factors, proc.Factors())
	}
}

func TestPathsAreReproducible(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 100, 0.03, 0.01, &models.HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5})
	g := Grid{NumPaths: 64, NumSteps: 12, Horizon: 1, Seed: 99}

	first, err := GeneratePaths(context.Background(), snap, g)
	require.NoError(t, err)
	second, err := GeneratePaths(context.Background(), snap, g)
	require.NoError(t, err)
	require.Len(t, first, 64)
	assert.Equal(t, first, second)

	proc, err := NewProcess(snap, g)
	require.NoError(t, err)
	err = WalkRange(context.Background(), proc, g, 40, 44, func(i int, p *Path) error {
		assert.Equal(t, first[i].Spot, p.Spot)
		assert.Equal(t, first[i].Variance, p.Variance)
		return nil
	})
	require.NoError(t, err)
}

func TestHestonStoredVarianceNonNegative(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 100, 0.02, 0, &models.HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5})
	g := Grid{NumPaths: 10000, NumSteps: 252, Horizon: 1, Seed: 2024}
	proc, err := NewProcess(snap, g)
	require.NoError(t, err)

	negatives := 0
	err = Walk(context.Background(), proc, g, func(_ int, p *Path) error {
		for _, v := range p.Variance {
			if v < 0 {
				negatives++
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, negatives)
}

func TestLognormalForwardIsMartingale(t *testing.T) {
	t.Parallel()

	r, q := 0.04, 0.01
	snap := newSnapshot(t, 100, r, q, models.Flat{Sigma: 0.25})
	g := Grid{NumPaths: 40000, NumSteps: 4, Horizon: 2, Seed: 3}
	proc, err := NewProcess(snap, g)
	require.NoError(t, err)

	var sum, sumSq float64
	err = Walk(context.Background(), proc, g, func(_ int, p *Path) error {
		s := p.Terminal()
		sum += s
		sumSq += s * s
		return nil
	})
	require.NoError(t, err)

	n := float64(g.NumPaths)
	mean := sum / n
	se := math.Sqrt((sumSq/n - mean*mean) / n)
	assert.InDelta(t, 100*math.Exp((r-q)*2), mean, 4*se)
}

func TestStepVariancesFollowTermStructure(t *testing.T) {
	t.Parallel()

	svi, err := models.NewSVI(
		models.SVISlice{Maturity: 1, Params: models.SVIParams{A: 0.04, B: 0, Sigma: 1}},
		models.SVISlice{Maturity: 2, Params: models.SVIParams{A: 0.12, B: 0, Sigma: 1}},
	)
	require.NoError(t, err)

	v, err := stepVariances(svi, Grid{NumPaths: 1, NumSteps: 4, Horizon: 2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.04, 0.04, 0.08, 0.08}, v, 1e-12)
}

func TestWalkCancelled(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 100, 0.02, 0, models.Flat{Sigma: 0.2})
	g := Grid{NumPaths: 1000, NumSteps: 10, Horizon: 1}
	proc, err := NewProcess(snap, g)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Walk(ctx, proc, g, func(int, *Path) error { return nil })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWalkRangeBounds(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 100, 0.02, 0, models.Flat{Sigma: 0.2})
	g := Grid{NumPaths: 10, NumSteps: 1, Horizon: 1}
	proc, err := NewProcess(snap, g)
	require.NoError(t, err)

	err = WalkRange(context.Background(), proc, g, 5, 11, func(int, *Path) error { return nil })
	var simErr *Error
	assert.True(t, errors.As(err, &simErr))
}
