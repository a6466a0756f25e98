package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHestonValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		model   HestonModel
		wantErr bool
	}{
		{"valid", HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5}, false},
		{"zero v0 allowed", HestonModel{V0: 0, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5}, false},
		{"negative kappa", HestonModel{V0: 0.04, Kappa: -1, Theta: 0.04, Xi: 0.3, Rho: -0.5}, true},
		{"zero theta", HestonModel{V0: 0.04, Kappa: 2, Theta: 0, Xi: 0.3, Rho: -0.5}, true},
		{"zero xi", HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0, Rho: -0.5}, true},
		{"negative v0", HestonModel{V0: -0.01, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5}, true},
		{"rho at -1", HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -1}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.model.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHestonFeller(t *testing.T) {
	t.Parallel()

	assert.True(t, (&HestonModel{Kappa: 2, Theta: 0.04, Xi: 0.3}).Feller())
	assert.False(t, (&HestonModel{Kappa: 0.5, Theta: 0.04, Xi: 0.5}).Feller())

	// violating Feller is flagged, not rejected
	_, err := NewHestonModel(0.04, 0.5, 0.04, 0.5, -0.5)
	assert.NoError(t, err)
}

func TestHestonStepTruncates(t *testing.T) {
	t.Parallel()

	h := HestonModel{V0: 0.04, Kappa: 2, Theta: 0.04, Xi: 0.3, Rho: -0.5}
	dt := 1.0 / 252

	lnS, v := h.Step(math.Log(100), -0.01, 0.02, dt, 1.5, -2)
	assert.Equal(t, math.Log(100)+0.02*dt, lnS)
	assert.InDelta(t, -0.01+2*0.04*dt, v, 1e-15)
	assert.False(t, math.IsNaN(lnS) || math.IsNaN(v))
}

func TestHestonCorrelate(t *testing.T) {
	t.Parallel()

	h := HestonModel{Rho: -0.6}
	zS, zV := h.Correlate(1, 0)
	assert.Equal(t, 1.0, zS)
	assert.InDelta(t, -0.6, zV, 1e-15)

	_, zV = h.Correlate(0, 1)
	assert.InDelta(t, 0.8, zV, 1e-15)
}

func TestHestonCallPriceNearBlackScholes(t *testing.T) {
	t.Parallel()

	h, err := NewHestonModel(0.04, 2, 0.04, 0.05, 0)
	require.NoError(t, err)

	for _, K := range []float64{90, 100, 110} {
		bs := BlackScholes(100, K, 1, 0.02, 0, 0.2, true).Price
		assert.InDelta(t, bs, h.CallPrice(100, K, 0.02, 0, 1), 0.05, "K=%v", K)
	}
}

func TestHestonCallPriceParityBounds(t *testing.T) {
	t.Parallel()

	h := &HestonModel{V0: 0.09, Kappa: 1.5, Theta: 0.06, Xi: 0.6, Rho: -0.7}
	price := h.CallPrice(100, 100, 0.03, 0.01, 2)
	lower := 100*math.Exp(-0.01*2) - 100*math.Exp(-0.03*2)
	assert.Greater(t, price, lower)
	assert.Less(t, price, 100.0)
}

func TestHestonBumpVol(t *testing.T) {
	t.Parallel()

	h := &HestonModel{V0: 0.04, Kappa: 2, Theta: 0.09, Xi: 0.3, Rho: -0.5}
	bumped := h.BumpVol(0.01).(*HestonModel)
	assert.InDelta(t, 0.21*0.21, bumped.V0, 1e-15)
	assert.InDelta(t, 0.31*0.31, bumped.Theta, 1e-15)
	assert.Equal(t, 0.04, h.V0)
}
