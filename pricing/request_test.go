package pricing

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/logger"
	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

func flatQuotes(vol float64) []models.Quote {
	var quotes []models.Quote
	for _, t := range []float64{0.5, 1, 2} {
		for _, k := range []float64{80, 90, 100, 110, 120} {
			quotes = append(quotes, models.Quote{Strike: k, Maturity: t, ImpliedVol: vol, IsCall: true})
		}
	}
	return quotes
}

func TestRun(t *testing.T) {
	t.Parallel()

	snap := flatSnapshot(t, 100, 0.03, 0, 0.2)
	grid := simulation.Grid{NumPaths: 4_000, NumSteps: 1, Horizon: 1, Seed: 1}
	call := european(t, products.Call, 100, 1)

	t.Run("price only", func(t *testing.T) {
		res, err := NewEngine().Run(context.Background(), Request{ID: "r1", Market: snap, Product: call, Grid: grid})
		require.NoError(t, err)
		assert.Nil(t, res.Greeks)
		assert.Equal(t, 0.95, res.Confidence)
	})

	t.Run("confidence override", func(t *testing.T) {
		engine := NewEngine()
		res, err := engine.Run(context.Background(), Request{Market: snap, Product: call, Grid: grid, Confidence: 0.99})
		require.NoError(t, err)
		assert.Equal(t, 0.99, res.Confidence)
		assert.InDelta(t, 2.5758*res.StandardError, res.ConfidenceInterval.High-res.Price, 1e-3*res.StandardError)
		assert.Equal(t, 0.95, engine.confidence)
	})

	t.Run("with greeks", func(t *testing.T) {
		res, err := NewEngine().Run(context.Background(), Request{Market: snap, Product: call, Grid: grid, Bumps: Bumps{BumpVol: 0.01}})
		require.NoError(t, err)
		assert.Greater(t, res.Greeks[Vega], 0.0)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewEngine().Run(context.Background(), Request{Market: snap, Product: call, Grid: grid, Confidence: 1.5})
		assert.Error(t, err)
		_, err = NewEngine().Run(context.Background(), Request{Product: call, Grid: grid})
		assert.Error(t, err)
		_, err = NewEngine().Run(context.Background(), Request{Market: snap, Grid: grid})
		assert.Error(t, err)
	})
}

func TestCalibrateSSVIThenPrice(t *testing.T) {
	t.Parallel()

	req := CalibrationRequest{
		Kind:   models.KindSSVI,
		Quotes: flatQuotes(0.2),
		Spot:   100,
		Curve:  market.Flat(0.03),
	}
	cal, err := NewEngine().Calibrate(req)
	require.NoError(t, err)
	assert.Equal(t, models.KindSSVI, cal.Kind)
	assert.Nil(t, cal.Fallback)

	implied, ok := cal.Surface.(models.Implied)
	require.True(t, ok)
	assert.InDelta(t, 0.2, models.ImpliedVol(implied, 0, 1), 2e-3)

	res, err := NewEngine().Run(context.Background(), Request{
		Calibration: &req,
		Product:     european(t, products.Call, 100, 1),
		Grid:        simulation.Grid{NumPaths: 50_000, NumSteps: 1, Horizon: 1, Seed: 6},
	})
	require.NoError(t, err)
	want := models.BlackScholes(100, 100, 1, 0.03, 0, 0.2, true).Price
	assert.Less(t, math.Abs(res.Price-want), 4*res.StandardError+0.05)
}

func TestCalibrateLocalVolFallback(t *testing.T) {
	t.Parallel()

	base := CalibrationRequest{
		Kind:   models.KindLocalVol,
		Quotes: flatQuotes(0.2),
		Spot:   100,
		Curve:  market.Flat(0.02),
		LocalVol: LocalVolSpec{
			Base: models.KindSVI,
			// no node can clear a floor this high
			Options: models.LocalVolOptions{Epsilon: 1e6},
		},
	}

	t.Run("error without fallback", func(t *testing.T) {
		_, err := NewEngine().Calibrate(base)
		var lvErr *models.LocalVolError
		require.True(t, errors.As(err, &lvErr), "got %v", err)
		assert.Equal(t, 15, lvErr.TotalNodes)
	})

	t.Run("fallback to base", func(t *testing.T) {
		req := base
		req.LocalVol.Fallback = true
		cal, err := NewEngine().Calibrate(req)
		require.NoError(t, err)
		assert.Equal(t, models.KindLocalVol, cal.Requested)
		assert.Equal(t, models.KindSVI, cal.Kind)
		require.NotNil(t, cal.Fallback)
		assert.Equal(t, 15, cal.Fallback.BadNodes)
	})

	t.Run("stable build", func(t *testing.T) {
		req := base
		req.LocalVol.Options = models.LocalVolOptions{}
		cal, err := NewEngine().Calibrate(req)
		require.NoError(t, err)
		lv, ok := cal.Surface.(*models.LocalVol)
		require.True(t, ok)
		assert.InDelta(t, 0.04, lv.LocalVariance(100, 1), 4e-3)
		assert.Nil(t, cal.Unstable)
	})

	t.Run("tolerated instability is reported", func(t *testing.T) {
		var buf bytes.Buffer
		log := logger.New(logger.Config{Level: "debug", Format: "json", Out: &buf})
		req := base
		req.LocalVol.Options.MaxBadFraction = 1
		cal, err := NewEngine(WithLogger(log)).Calibrate(req)
		require.NoError(t, err)
		assert.Equal(t, models.KindLocalVol, cal.Kind)
		assert.Nil(t, cal.Fallback)
		require.NotNil(t, cal.Unstable)
		assert.Equal(t, 15, cal.Unstable.BadNodes)
		assert.Contains(t, buf.String(), "local vol kept with clamped nodes")
	})
}

func TestCalibrateRejectsBadInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  CalibrationRequest
	}{
		{"no spot", CalibrationRequest{Kind: models.KindSSVI, Quotes: flatQuotes(0.2), Curve: market.Flat(0)}},
		{"no curve", CalibrationRequest{Kind: models.KindSSVI, Quotes: flatQuotes(0.2), Spot: 100}},
		{"flat", CalibrationRequest{Kind: models.KindFlat, Quotes: flatQuotes(0.2), Spot: 100, Curve: market.Flat(0)}},
		{"no quotes", CalibrationRequest{Kind: models.KindSVI, Spot: 100, Curve: market.Flat(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine().Calibrate(tt.req)
			assert.Error(t, err)
		})
	}
}
