package products

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterly(trigger, couponBarrier, coupon float64) []Observation {
	var s []Observation
	for i := 1; i <= 4; i++ {
		s = append(s, Observation{Time: 0.25 * float64(i), Trigger: trigger, CouponBarrier: couponBarrier, Coupon: coupon})
	}
	return s
}

func TestAutocallRedeemsOnTriggerDate(t *testing.T) {
	t.Parallel()

	a, err := NewAutocall(Phoenix, 1000, 100, 0.6, []Observation{{Time: 1, Trigger: 1, CouponBarrier: 0.8, Coupon: 0.05}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Maturity())

	out := a.Evaluate(pathOf(1, 100, 95, 101), flatRate(0.02))
	assert.Equal(t, 1.0, out.Time)
	assert.InDelta(t, 1000*1.05*math.Exp(-0.02), out.Value, 1e-9)
}

func TestAutocallEarlyRedemption(t *testing.T) {
	t.Parallel()

	a, err := NewAutocall(Phoenix, 100, 100, 0.6, quarterly(1, 0.7, 0.02))
	require.NoError(t, err)

	// below trigger, above coupon barrier at 0.25; above trigger at 0.5
	out := a.Evaluate(pathOf(1, 100, 90, 102, 50, 50), flatRate(0))
	assert.Equal(t, 0.5, out.Time)
	assert.InDelta(t, 2+2+100, out.Value, 1e-12)
}

func TestAutocallVariants(t *testing.T) {
	t.Parallel()

	// perf: 0.65 (miss), 0.75 (coupon), 0.6 (miss), 0.85 (final, above protection)
	spots := []float64{100, 65, 75, 60, 85}
	tests := []struct {
		variant AutocallVariant
		want    float64
	}{
		{Phoenix, 3 + 3 + 100},
		{Memory, 6 + 6 + 100}, // each met barrier also pays the coupon missed before it
		{Eagle, 100 + 3 + 3},  // two met barriers accrued, paid with the principal
		{Defensive, 3 + 3 + 100},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.variant.String(), func(t *testing.T) {
			t.Parallel()
			a, err := NewAutocall(tt.variant, 100, 100, 0.7, quarterly(1, 0.7, 0.03))
			require.NoError(t, err)
			out := a.Evaluate(pathOf(1, spots...), flatRate(0))
			assert.Equal(t, 1.0, out.Time)
			assert.InDelta(t, tt.want, out.Value, 1e-12)
		})
	}
}

func TestAutocallMemoryAccumulates(t *testing.T) {
	t.Parallel()

	a, err := NewAutocall(Memory, 100, 100, 0.5, quarterly(1.1, 0.8, 0.02))
	require.NoError(t, err)

	out := a.Evaluate(pathOf(1, 100, 70, 75, 79, 90), flatRate(0))
	assert.InDelta(t, 8+100, out.Value, 1e-12)
}

func TestAutocallCapitalAtRisk(t *testing.T) {
	t.Parallel()

	for _, v := range []AutocallVariant{Phoenix, Memory, Eagle} {
		a, err := NewAutocall(v, 100, 100, 0.6, quarterly(1, 0.7, 0.03))
		require.NoError(t, err)
		out := a.Evaluate(pathOf(1, 100, 90, 80, 60, 50), flatRate(0))
		switch v {
		case Phoenix:
			assert.InDelta(t, 3+3+50, out.Value, 1e-12)
		case Memory:
			assert.InDelta(t, 3+3+50, out.Value, 1e-12)
		case Eagle:
			// accrued coupons are lost with the principal
			assert.InDelta(t, 50, out.Value, 1e-12)
		}
	}
}

func TestAutocallConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		variant  AutocallVariant
		schedule []Observation
		protect  float64
	}{
		{"missing schedule", Phoenix, nil, 0.6},
		{"no coupons", Memory, quarterly(1, 0.7, 0), 0.6},
		{"unordered", Phoenix, []Observation{{Time: 1, Trigger: 1, Coupon: 0.1}, {Time: 0.5, Trigger: 1, Coupon: 0.1}}, 0.6},
		{"negative coupon barrier", Phoenix, quarterly(1, -0.7, 0.02), 0.6},
		{"negative protection", Phoenix, quarterly(1, 0.7, 0.02), -0.1},
		{"defensive step up", Defensive, []Observation{{Time: 0.5, Trigger: 0.9, Coupon: 0.1}, {Time: 1, Trigger: 1, Coupon: 0.1}}, 0.6},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewAutocall(tt.variant, 100, 100, tt.protect, tt.schedule)
			var cfg *ConfigError
			require.True(t, errors.As(err, &cfg), "got %v", err)
			assert.Equal(t, KindAutocall, cfg.Product)
		})
	}
}

func TestAutocallDefensiveStepDown(t *testing.T) {
	t.Parallel()

	schedule := []Observation{
		{Time: 0.5, Trigger: 1.0, CouponBarrier: 0.7, Coupon: 0.04},
		{Time: 1.0, Trigger: 0.9, CouponBarrier: 0.7, Coupon: 0.04},
	}
	a, err := NewAutocall(Defensive, 100, 100, 0.6, schedule)
	require.NoError(t, err)

	out := a.Evaluate(pathOf(1, 100, 95, 92), flatRate(0))
	assert.Equal(t, 1.0, out.Time)
	assert.InDelta(t, 4+4+100, out.Value, 1e-12)
}

func TestAutocallRoll(t *testing.T) {
	t.Parallel()

	a, err := NewAutocall(Phoenix, 100, 100, 0.6, quarterly(1, 0.7, 0.02))
	require.NoError(t, err)

	rolled, err := a.Roll(0.3)
	require.NoError(t, err)
	sched := rolled.(*Autocall).Schedule
	require.Len(t, sched, 3)
	assert.InDelta(t, 0.2, sched[0].Time, 1e-12)
	assert.Len(t, a.Schedule, 4)
}

func TestParseAutocallVariant(t *testing.T) {
	t.Parallel()

	for _, v := range []AutocallVariant{Phoenix, Memory, Eagle, Defensive} {
		got, err := ParseAutocallVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	_, err := ParseAutocallVariant("snowball")
	assert.Error(t, err)
}
