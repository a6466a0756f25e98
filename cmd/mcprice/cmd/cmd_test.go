package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhhuango/json"

	"github.com/bcdannyboy/mcprice/pricing"
)

const europeanRequest = `
id: eu-1
market:
  spot: 100
  curve: {rate: 0.05}
  surface: {kind: flat, sigma: 0.2}
product: {type: european, option: call, strike: 100, expiry: 1}
grid: {paths: 20000, steps: 1, seed: 3}
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Setenv("MCPRICE_ENV", "test")
	t.Setenv("MCPRICE_LOG_LEVEL", "disabled")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "mcprice version "+version)
}

func TestPriceCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(europeanRequest), 0o644))

	var got struct {
		ID            string  `json:"id"`
		Price         float64 `json:"price"`
		StandardError float64 `json:"standard_error"`
		Paths         int     `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(execute(t, "price", "-f", path, "--precision", "4")), &got))
	assert.Equal(t, "eu-1", got.ID)
	assert.Equal(t, 20000, got.Paths)
	// Black-Scholes 10.4506
	assert.InDelta(t, 10.4506, got.Price, 4*got.StandardError)
}

func TestReportRounding(t *testing.T) {
	t.Parallel()

	r := newReport("x", &pricing.Result{Price: 1.23456789, StandardError: 0.000123456, Greeks: map[string]float64{"delta": 0.5555555}}, 3)
	assert.Equal(t, "1.235", r.Price.String())
	assert.Equal(t, "0", r.StandardError.String())
	assert.Equal(t, "0.556", r.Greeks["delta"].String())
}
