package products

import (
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

// Direction is the side the barrier sits on relative to the initial spot.
type Direction int

const (
	Up Direction = iota
	Down
)

// Knock says whether touching the barrier activates or extinguishes the option.
type Knock int

const (
	Out Knock = iota
	In
)

// Barrier is a vanilla option that knocks in or out when the spot touches Level.
//
// Monitoring is discrete: only the listed Dates, or every grid step when none are
// listed, are checked. A continuously monitored barrier would knock more often, so the
// estimate carries the usual discretisation bias; refine the grid or list the contract's
// own observation dates rather than expecting a continuous-monitoring price.
//
// A knocked-out option pays Rebate at the hit date; an unactivated knock-in pays Rebate
// at expiry.
type Barrier struct {
	Type      OptionType
	Strike    float64
	Expiry    float64
	Level     float64
	Direction Direction
	Knock     Knock
	Rebate    float64
	Dates     []float64
}

func NewBarrier(typ OptionType, strike, expiry, level float64, dir Direction, knock Knock, rebate float64, dates []float64) (*Barrier, error) {
	if err := checkPositive(KindBarrier, "strike", strike); err != nil {
		return nil, err
	}
	if err := checkPositive(KindBarrier, "expiry", expiry); err != nil {
		return nil, err
	}
	if err := checkPositive(KindBarrier, "barrier", level); err != nil {
		return nil, err
	}
	if err := checkNonNegative(KindBarrier, "rebate", rebate); err != nil {
		return nil, err
	}
	if err := checkDates(KindBarrier, "monitoring dates", dates, expiry); err != nil {
		return nil, err
	}
	return &Barrier{
		Type:      typ,
		Strike:    strike,
		Expiry:    expiry,
		Level:     level,
		Direction: dir,
		Knock:     knock,
		Rebate:    rebate,
		Dates:     append([]float64(nil), dates...),
	}, nil
}

func (b *Barrier) Kind() Kind         { return KindBarrier }
func (b *Barrier) Maturity() float64  { return b.Expiry }
func (b *Barrier) sealed()            {}
func (b *Barrier) Fixings() []float64 { return withExpiry(b.Dates, b.Expiry) }

func (b *Barrier) crossed(s float64) bool {
	if b.Direction == Up {
		return s >= b.Level
	}
	return s <= b.Level
}

// hit returns the first monitored index at which the barrier was touched, or -1.
func (b *Barrier) hit(p *simulation.Path) int {
	for _, i := range monitored(p, b.Dates, b.Expiry) {
		if b.crossed(p.Spot[i]) {
			return i
		}
	}
	return -1
}

func (b *Barrier) Evaluate(p *simulation.Path, d Discounter) Outcome {
	hit := b.hit(p)
	dfT := d.DiscountFactor(b.Expiry)
	vanilla := b.Type.payoff(p.At(b.Expiry), b.Strike) * dfT

	switch {
	case b.Knock == Out && hit >= 0:
		t := math.Min(p.Times[hit], b.Expiry)
		return Outcome{Value: b.Rebate * d.DiscountFactor(t), Time: t}
	case b.Knock == Out:
		return Outcome{Value: vanilla, Time: b.Expiry}
	case hit >= 0:
		return Outcome{Value: vanilla, Time: b.Expiry}
	default:
		return Outcome{Value: b.Rebate * dfT, Time: b.Expiry}
	}
}

func (b *Barrier) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindBarrier, b.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewBarrier(b.Type, b.Strike, expiry, b.Level, b.Direction, b.Knock, b.Rebate, rollDates(b.Dates, dt))
}
