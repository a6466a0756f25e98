package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
)

func newSnapshot(t *testing.T, spot, r, q float64, surface models.Surface) *market.Snapshot {
	t.Helper()
	snap, err := market.NewSnapshot(spot, market.Flat(r), q, surface)
	require.NoError(t, err)
	return snap
}
