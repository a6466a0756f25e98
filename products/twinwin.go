package products

import (
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

// TwinWin rewards moves in either direction. While the down-and-out barrier has not
// been touched it pays notional·(1 + min(|perf−1|·participation, Cap)), with separate
// participation for gains and losses. Once knocked out it pays the linear
// notional·clamp(perf, Floor, 1+Cap). Cap = 0 means uncapped. Monitoring follows the
// listed Dates or every grid step.
type TwinWin struct {
	Notional          float64
	Reference         float64
	Expiry            float64
	KnockOut          float64
	UpParticipation   float64
	DownParticipation float64
	Cap               float64
	Floor             float64
	Dates             []float64
}

func NewTwinWin(notional, reference, expiry, knockOut, upPart, downPart, cap, floor float64, dates []float64) (*TwinWin, error) {
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"notional", notional},
		{"reference", reference},
		{"expiry", expiry},
		{"knock-out barrier", knockOut},
	} {
		if err := checkPositive(KindTwinWin, c.field, c.v); err != nil {
			return nil, err
		}
	}
	if knockOut >= 1 {
		return nil, configErr(KindTwinWin, "knock-out barrier", "must be below the reference level, got %v", knockOut)
	}
	for _, c := range []struct {
		field string
		v     float64
	}{
		{"up participation", upPart},
		{"down participation", downPart},
		{"cap", cap},
		{"floor", floor},
	} {
		if err := checkNonNegative(KindTwinWin, c.field, c.v); err != nil {
			return nil, err
		}
	}
	if cap > 0 && floor > 1+cap {
		return nil, configErr(KindTwinWin, "floor", "%v above the capped level %v", floor, 1+cap)
	}
	if err := checkDates(KindTwinWin, "monitoring dates", dates, expiry); err != nil {
		return nil, err
	}
	return &TwinWin{
		Notional:          notional,
		Reference:         reference,
		Expiry:            expiry,
		KnockOut:          knockOut,
		UpParticipation:   upPart,
		DownParticipation: downPart,
		Cap:               cap,
		Floor:             floor,
		Dates:             append([]float64(nil), dates...),
	}, nil
}

func (w *TwinWin) Kind() Kind         { return KindTwinWin }
func (w *TwinWin) Maturity() float64  { return w.Expiry }
func (w *TwinWin) sealed()            {}
func (w *TwinWin) Fixings() []float64 { return withExpiry(w.Dates, w.Expiry) }

func (w *TwinWin) knockedOut(p *simulation.Path) bool {
	level := w.KnockOut * w.Reference
	for _, i := range monitored(p, w.Dates, w.Expiry) {
		if p.Spot[i] <= level {
			return true
		}
	}
	return false
}

func (w *TwinWin) Evaluate(p *simulation.Path, d Discounter) Outcome {
	perf := p.At(w.Expiry) / w.Reference
	var payoff float64
	if w.knockedOut(p) {
		v := math.Max(perf, w.Floor)
		if w.Cap > 0 {
			v = math.Min(v, 1+w.Cap)
		}
		payoff = w.Notional * v
	} else {
		gain := (perf - 1) * w.UpParticipation
		if perf < 1 {
			gain = (1 - perf) * w.DownParticipation
		}
		if w.Cap > 0 {
			gain = math.Min(gain, w.Cap)
		}
		payoff = w.Notional * (1 + gain)
	}
	return Outcome{Value: payoff * d.DiscountFactor(w.Expiry), Time: w.Expiry}
}

func (w *TwinWin) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindTwinWin, w.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewTwinWin(w.Notional, w.Reference, expiry, w.KnockOut, w.UpParticipation, w.DownParticipation, w.Cap, w.Floor, rollDates(w.Dates, dt))
}
