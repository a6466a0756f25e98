package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/pricing"
	"github.com/bcdannyboy/mcprice/products"
)

const autocallYAML = `
id: ac-1
market:
  spot: 100
  dividend_yield: 0.01
  curve:
    tenors: [0.5, 1, 2]
    rates: [0.03, 0.032, 0.035]
  surface:
    kind: ssvi
    ssvi:
      rho: -0.4
      eta: 0.8
      gamma: 0.4
      maturities: [0.5, 1, 2]
      thetas: [0.02, 0.04, 0.08]
product:
  type: autocall
  variant: memory
  notional: 1000
  protection: 0.6
  schedule:
    - {time: 0.5, trigger: 1.0, coupon_barrier: 0.8, coupon: 0.03}
    - {time: 1.0, trigger: 1.0, coupon_barrier: 0.8, coupon: 0.03}
grid:
  paths: 5000
  seed: 0
greeks:
  spot: 0
  vol: 0.02
`

func testConfig() *Config {
	return &Config{Paths: 100000, Steps: 252, Seed: 9, CalibrationMaxIter: 500}
}

func TestParseRequestYAML(t *testing.T) {
	rf, err := ParseRequest([]byte(autocallYAML))
	require.NoError(t, err)

	req, err := rf.Build(testConfig())
	require.NoError(t, err)
	assert.Equal(t, "ac-1", req.ID)
	require.NotNil(t, req.Market)
	assert.Equal(t, 100.0, req.Market.Spot())
	assert.Equal(t, models.KindSSVI, req.Market.Surface().Kind())

	ac, ok := req.Product.(*products.Autocall)
	require.True(t, ok)
	assert.Equal(t, products.Memory, ac.Variant)
	assert.Equal(t, 100.0, ac.Reference, "reference defaults to spot")
	assert.Len(t, ac.Schedule, 2)

	assert.Equal(t, 5000, req.Grid.NumPaths)
	assert.Equal(t, 252, req.Grid.NumSteps)
	assert.Equal(t, 1.0, req.Grid.Horizon)
	assert.Equal(t, uint64(0), req.Grid.Seed, "explicit zero seed wins over the default")

	assert.Equal(t, pricing.Bumps{pricing.BumpSpot: 0.01, pricing.BumpVol: 0.02}, req.Bumps)
}

func TestLoadRequestJSON(t *testing.T) {
	doc := `{
  "market": {"spot": 50, "curve": {"rate": 0.02}, "surface": {"kind": "flat", "sigma": 0.3}},
  "product": {"type": "barrier", "option": "put", "strike": 50, "expiry": 0.5,
              "level": 40, "direction": "down", "knock": "in"},
  "grid": {"paths": 1000, "steps": 50}
}`
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rf, err := LoadRequest(path)
	require.NoError(t, err)
	req, err := rf.Build(testConfig())
	require.NoError(t, err)

	b, ok := req.Product.(*products.Barrier)
	require.True(t, ok)
	assert.Equal(t, products.Put, b.Type)
	assert.Equal(t, products.Down, b.Direction)
	assert.Equal(t, products.In, b.Knock)
	assert.Equal(t, uint64(9), req.Grid.Seed)
	assert.Nil(t, req.Bumps)
}

func TestBuildCalibrationRequest(t *testing.T) {
	doc := `
calibration:
  kind: localvol
  spot: 100
  curve: {rate: 0.01}
  quotes:
    - {strike: 90, maturity: 1, implied_vol: 0.22}
    - {strike: 100, maturity: 1, implied_vol: 0.2}
    - {strike: 110, maturity: 1, price: 4.1, type: put}
  local_vol: {base: svi, fallback: true, max_bad_fraction: 0.1}
product: {type: european, strike: 100, expiry: 1}
`
	rf, err := ParseRequest([]byte(doc))
	require.NoError(t, err)
	req, err := rf.Build(testConfig())
	require.NoError(t, err)

	require.Nil(t, req.Market)
	require.NotNil(t, req.Calibration)
	cal := req.Calibration
	assert.Equal(t, models.KindLocalVol, cal.Kind)
	assert.Equal(t, models.KindSVI, cal.LocalVol.Base)
	assert.True(t, cal.LocalVol.Fallback)
	assert.Equal(t, 0.1, cal.LocalVol.Options.MaxBadFraction)
	assert.Len(t, cal.Quotes, 3)
	assert.False(t, cal.Quotes[2].IsCall)
	assert.Equal(t, models.NelderMead{MaxIterations: 500}, cal.Minimizer)
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no market", `product: {type: european, strike: 1, expiry: 1}`},
		{"no product", `market: {spot: 1, surface: {kind: flat, sigma: 0.2}}`},
		{"both sources", `{market: {spot: 1}, calibration: {kind: svi}, product: {type: european}}`},
		{"negative paths", `{market: {spot: 1}, product: {type: european}, grid: {paths: -1}}`},
		{"garbage", `::: not a request`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestBuildValidatesUnparsedRequest(t *testing.T) {
	tests := []struct {
		name string
		rf   RequestFile
	}{
		{"no market or calibration", RequestFile{Product: ProductConfig{Type: "european", Strike: 100, Expiry: 1}}},
		{"no product type", RequestFile{Market: &MarketConfig{Spot: 100, Surface: SurfaceConfig{Kind: "flat", Sigma: 0.2}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := tt.rf.Build(testConfig())
				assert.ErrorContains(t, err, "invalid request")
			})
		})
	}
}

func TestBuildRejectsBadProducts(t *testing.T) {
	tests := []struct {
		name string
		p    ProductConfig
	}{
		{"unknown type", ProductConfig{Type: "rainbow"}},
		{"bad option", ProductConfig{Type: "european", Option: "straddle", Strike: 1, Expiry: 1}},
		{"bad direction", ProductConfig{Type: "barrier", Strike: 1, Expiry: 1, Level: 2, Direction: "sideways", Knock: "out"}},
		{"bad variant", ProductConfig{Type: "autocall", Variant: "falcon"}},
		{"invalid european", ProductConfig{Type: "european", Strike: -1, Expiry: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Build(100)
			assert.Error(t, err)
		})
	}
}

func TestFlatSurfaceFromHistory(t *testing.T) {
	s := SurfaceConfig{Kind: "flat", History: &HistoryConfig{
		Estimator: "parkinson",
		Bars: []BarConfig{
			{Open: 100, High: 102, Low: 99, Close: 101},
			{Open: 101, High: 103, Low: 100, Close: 102},
			{Open: 102, High: 102.5, Low: 98, Close: 99},
		},
	}}
	surface, err := s.build()
	require.NoError(t, err)
	flat, ok := surface.(models.Flat)
	require.True(t, ok)
	assert.Greater(t, flat.Sigma, 0.2)
	assert.Less(t, flat.Sigma, 0.6)

	s.History.Estimator = "ewma"
	_, err = s.build()
	assert.Error(t, err)
}

func TestLoadCalibration(t *testing.T) {
	doc := `
calibration:
  kind: heston
  spot: 100
  curve: {rate: 0.02}
  max_iterations: 50
  quotes:
    - {strike: 100, maturity: 1, implied_vol: 0.2}
product: {type: european, strike: 100, expiry: 1}
`
	path := filepath.Join(t.TempDir(), "cal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	req, err := LoadCalibration(path, testConfig())
	require.NoError(t, err)
	assert.Equal(t, models.KindHeston, req.Kind)
	assert.Equal(t, models.NelderMead{MaxIterations: 50}, req.Minimizer)

	noCal := filepath.Join(t.TempDir(), "price.yaml")
	require.NoError(t, os.WriteFile(noCal, []byte(`{market: {spot: 1, surface: {kind: flat, sigma: 0.2}}, product: {type: european}}`), 0o644))
	_, err = LoadCalibration(noCal, testConfig())
	assert.Error(t, err)
}
