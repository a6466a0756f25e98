package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVarianceBilinear(t *testing.T) {
	t.Parallel()

	lv, err := NewLocalVol([]float64{90, 110}, []float64{1, 2}, [][]float64{
		{0.04, 0.08},
		{0.06, 0.10},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		s, t float64
		want float64
	}{
		{"node", 90, 1, 0.04},
		{"mid strike", 100, 1, 0.06},
		{"mid time", 90, 1.5, 0.05},
		{"centre", 100, 1.5, 0.07},
		{"below strikes", 50, 1, 0.04},
		{"after times", 110, 5, 0.10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, lv.LocalVariance(tt.s, tt.t), 1e-12, tt.name)
	}
}

func TestNewLocalVolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLocalVol([]float64{90, 110}, []float64{1}, [][]float64{{0.04, -0.01}})
	assert.Error(t, err)

	_, err = NewLocalVol([]float64{110, 90}, []float64{1}, [][]float64{{0.04, 0.04}})
	assert.Error(t, err)

	_, err = NewLocalVol([]float64{90, 110}, []float64{1, 2}, [][]float64{{0.04, 0.04}})
	assert.Error(t, err)
}

func TestBuildLocalVolFlatSurface(t *testing.T) {
	t.Parallel()

	mkt := MarketInputs{
		Spot:           100,
		DividendYield:  0.01,
		DiscountFactor: func(t float64) float64 { return math.Exp(-0.03 * t) },
	}
	strikes := []float64{80, 90, 100, 110, 120}
	times := []float64{0.5, 1, 2}

	lv, err := BuildLocalVol(Flat{Sigma: 0.2}, mkt, strikes, times, LocalVolOptions{})
	require.NoError(t, err)
	for i := range times {
		for j := range strikes {
			assert.InDelta(t, 0.04, lv.Variance[i][j], 2e-3, "K=%v T=%v", strikes[j], times[i])
		}
	}
	assert.Equal(t, KindLocalVol, lv.Kind())
	assert.Nil(t, lv.Unstable)
}

func TestBuildLocalVolDegenerateConvexity(t *testing.T) {
	t.Parallel()

	mkt := MarketInputs{Spot: 100}
	strikes := []float64{50, 75, 100, 125, 150}
	times := []float64{0.25, 1}

	_, err := BuildLocalVol(Flat{Sigma: 1e-6}, mkt, strikes, times, LocalVolOptions{})
	var lvErr *LocalVolError
	require.True(t, errors.As(err, &lvErr), "got %v", err)
	assert.Equal(t, 10, lvErr.TotalNodes)
	assert.Greater(t, lvErr.BadNodes, 0)

	lv, err := BuildLocalVol(Flat{Sigma: 1e-6}, mkt, strikes, times, LocalVolOptions{MaxBadFraction: 1})
	require.NoError(t, err)
	require.NotNil(t, lv.Unstable, "tolerated instability must still be reported")
	assert.Equal(t, lvErr.BadNodes, lv.Unstable.BadNodes)
	assert.Equal(t, 10, lv.Unstable.TotalNodes)
	assert.NotNil(t, lv.BumpVol(0.01).(*LocalVol).Unstable)
}

func TestLocalVolBumpVol(t *testing.T) {
	t.Parallel()

	lv, err := NewLocalVol([]float64{90, 110}, []float64{1}, [][]float64{{0.04, 0.09}})
	require.NoError(t, err)

	bumped := lv.BumpVol(0.01).(*LocalVol)
	assert.InDelta(t, 0.21*0.21, bumped.Variance[0][0], 1e-15)
	assert.InDelta(t, 0.31*0.31, bumped.Variance[0][1], 1e-15)
	assert.Equal(t, 0.04, lv.Variance[0][0])
}
