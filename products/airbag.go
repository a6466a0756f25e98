package products

import (
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

// Airbag is a capital-protected note with upside participation. With perf = S_T/S_ref:
//
//	perf ≥ 1           notional · (1 + Participation·min(perf−1, Cap))
//	Barrier ≤ perf < 1 notional
//	perf < Barrier     notional · perf/Barrier
//
// Below the barrier the loss is cushioned by the strike ratio 1/Barrier. Cap = 0 means
// uncapped.
type Airbag struct {
	Notional      float64
	Reference     float64
	Expiry        float64
	Barrier       float64
	Participation float64
	Cap           float64
}

func NewAirbag(notional, reference, expiry, barrier, participation, cap float64) (*Airbag, error) {
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"notional", notional},
		{"reference", reference},
		{"expiry", expiry},
		{"barrier", barrier},
	} {
		if err := checkPositive(KindAirbag, c.field, c.v); err != nil {
			return nil, err
		}
	}
	if barrier > 1 {
		return nil, configErr(KindAirbag, "barrier", "must not exceed 1, got %v", barrier)
	}
	if err := checkNonNegative(KindAirbag, "participation", participation); err != nil {
		return nil, err
	}
	if err := checkNonNegative(KindAirbag, "cap", cap); err != nil {
		return nil, err
	}
	return &Airbag{
		Notional:      notional,
		Reference:     reference,
		Expiry:        expiry,
		Barrier:       barrier,
		Participation: participation,
		Cap:           cap,
	}, nil
}

func (a *Airbag) Kind() Kind         { return KindAirbag }
func (a *Airbag) Maturity() float64  { return a.Expiry }
func (a *Airbag) sealed()            {}
func (a *Airbag) Fixings() []float64 { return []float64{a.Expiry} }

func (a *Airbag) Evaluate(p *simulation.Path, d Discounter) Outcome {
	perf := p.At(a.Expiry) / a.Reference
	var payoff float64
	switch {
	case perf >= 1:
		up := perf - 1
		if a.Cap > 0 {
			up = math.Min(up, a.Cap)
		}
		payoff = a.Notional * (1 + a.Participation*up)
	case perf >= a.Barrier:
		payoff = a.Notional
	default:
		payoff = a.Notional * perf / a.Barrier
	}
	return Outcome{Value: payoff * d.DiscountFactor(a.Expiry), Time: a.Expiry}
}

func (a *Airbag) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindAirbag, a.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewAirbag(a.Notional, a.Reference, expiry, a.Barrier, a.Participation, a.Cap)
}
