package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/products"
)

func flatSnapshot(t *testing.T, spot, r, q, sigma float64) *market.Snapshot {
	t.Helper()
	snap, err := market.NewSnapshot(spot, market.Flat(r), q, models.Flat{Sigma: sigma})
	require.NoError(t, err)
	return snap
}

func european(t *testing.T, typ products.OptionType, strike, expiry float64) products.Product {
	t.Helper()
	p, err := products.NewEuropean(typ, strike, expiry)
	require.NoError(t, err)
	return p
}
