package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/models"
)

func TestNewSnapshotValidation(t *testing.T) {
	t.Parallel()

	flat := models.Flat{Sigma: 0.2}
	tests := []struct {
		name    string
		spot    float64
		curve   *YieldCurve
		q       float64
		surface models.Surface
	}{
		{"zero spot", 0, Flat(0.01), 0, flat},
		{"negative spot", -1, Flat(0.01), 0, flat},
		{"nan spot", math.NaN(), Flat(0.01), 0, flat},
		{"no curve", 100, nil, 0, flat},
		{"no surface", 100, Flat(0.01), 0, nil},
		{"infinite dividend yield", 100, Flat(0.01), math.Inf(1), flat},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewSnapshot(tt.spot, tt.curve, tt.q, tt.surface)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestSnapshotBumpsLeaveOriginalUntouched(t *testing.T) {
	t.Parallel()

	curve, err := NewYieldCurve([]float64{0.5, 2}, []float64{0.02, 0.04})
	require.NoError(t, err)
	base, err := NewSnapshot(100, curve, 0.01, models.Flat{Sigma: 0.2})
	require.NoError(t, err)

	up, err := base.WithSpot(101)
	require.NoError(t, err)
	shifted, err := base.WithCurve(curve.Shift(0.001))
	require.NoError(t, err)
	bumped, err := base.WithSurface(base.Surface().BumpVol(0.01))
	require.NoError(t, err)

	assert.Equal(t, 100.0, base.Spot())
	assert.Same(t, curve, base.Curve())
	assert.Equal(t, models.Flat{Sigma: 0.2}, base.Surface())
	assert.Equal(t, 0.01, base.DividendYield())

	assert.Equal(t, 101.0, up.Spot())
	assert.Same(t, curve, up.Curve())
	assert.InDelta(t, curve.Rate(1)+0.001, shifted.Curve().Rate(1), 1e-12)
	assert.Equal(t, 100.0, shifted.Spot())
	assert.InDelta(t, 0.21, bumped.Surface().(models.Flat).Sigma, 1e-15)

	_, err = base.WithSpot(0)
	assert.Error(t, err)
	assert.Equal(t, 100.0, base.Spot())
}

func TestSnapshotForwardAndInputs(t *testing.T) {
	t.Parallel()

	curve, err := NewYieldCurve([]float64{0.5, 2}, []float64{0.02, 0.04})
	require.NoError(t, err)
	s, err := NewSnapshot(100, curve, 0.01, models.Flat{Sigma: 0.2})
	require.NoError(t, err)

	for _, ti := range []float64{0.25, 1, 3} {
		want := 100 * math.Exp(-0.01*ti) / curve.DiscountFactor(ti)
		assert.InDelta(t, want, s.Forward(ti), 1e-10, "t=%v", ti)
		assert.InDelta(t, s.Forward(ti), s.Inputs().Forward(ti), 1e-10, "t=%v", ti)
		assert.Equal(t, curve.DiscountFactor(ti), s.DiscountFactor(ti))
	}
	assert.Equal(t, 100.0, s.Inputs().Spot)
}
