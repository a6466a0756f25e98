package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"
)

func TestStreamIsAddressable(t *testing.T) {
	t.Parallel()

	a, b := NewStream(42), NewStream(42)
	za, zb := make([]float64, 2), make([]float64, 2)

	// b visits other keys first; the draws of (7, 3) must not depend on that
	b.Normals(1, 1, zb)
	b.Normals(9, 200, zb)

	a.Normals(7, 3, za)
	b.Normals(7, 3, zb)
	assert.Equal(t, za, zb)

	b.Normals(7, 4, zb)
	assert.NotEqual(t, za, zb)
	NewStream(43).Normals(7, 3, zb)
	assert.NotEqual(t, za, zb)
}

func TestStreamMoments(t *testing.T) {
	t.Parallel()

	s := NewStream(1)
	z := make([]float64, 1)
	xs := make([]float64, 0, 200000)
	for path := 0; path < 2000; path++ {
		for step := 1; step <= 100; step++ {
			s.Normals(path, step, z)
			xs = append(xs, z[0])
		}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 1, std, 0.01)

	// neighbouring keys must not be correlated
	lagged := stat.Correlation(xs[:len(xs)-1], xs[1:], nil)
	assert.InDelta(t, 0, lagged, 0.01)
}

func TestDeriveSeed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DeriveSeed(5, 1), DeriveSeed(5, 1))
	assert.NotEqual(t, DeriveSeed(5, 1), DeriveSeed(5, 2))
	assert.NotEqual(t, uint64(5), DeriveSeed(5, 1))
}
