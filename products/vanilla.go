package products

import (
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

// European pays max(±(S_T − K), 0) at Expiry.
type European struct {
	Type   OptionType
	Strike float64
	Expiry float64
}

func NewEuropean(typ OptionType, strike, expiry float64) (*European, error) {
	if err := checkPositive(KindEuropean, "strike", strike); err != nil {
		return nil, err
	}
	if err := checkPositive(KindEuropean, "expiry", expiry); err != nil {
		return nil, err
	}
	return &European{Type: typ, Strike: strike, Expiry: expiry}, nil
}

func (e *European) Kind() Kind         { return KindEuropean }
func (e *European) Maturity() float64  { return e.Expiry }
func (e *European) sealed()            {}
func (e *European) Fixings() []float64 { return []float64{e.Expiry} }

func (e *European) Evaluate(p *simulation.Path, d Discounter) Outcome {
	return Outcome{
		Value: e.Type.payoff(p.At(e.Expiry), e.Strike) * d.DiscountFactor(e.Expiry),
		Time:  e.Expiry,
	}
}

func (e *European) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindEuropean, e.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewEuropean(e.Type, e.Strike, expiry)
}

// Digital is cash-or-nothing: Payout if the option finishes in the money.
type Digital struct {
	Type   OptionType
	Strike float64
	Payout float64
	Expiry float64
}

func NewDigital(typ OptionType, strike, payout, expiry float64) (*Digital, error) {
	if err := checkPositive(KindDigital, "strike", strike); err != nil {
		return nil, err
	}
	if err := checkPositive(KindDigital, "payout", payout); err != nil {
		return nil, err
	}
	if err := checkPositive(KindDigital, "expiry", expiry); err != nil {
		return nil, err
	}
	return &Digital{Type: typ, Strike: strike, Payout: payout, Expiry: expiry}, nil
}

func (g *Digital) Kind() Kind         { return KindDigital }
func (g *Digital) Maturity() float64  { return g.Expiry }
func (g *Digital) sealed()            {}
func (g *Digital) Fixings() []float64 { return []float64{g.Expiry} }

func (g *Digital) Evaluate(p *simulation.Path, d Discounter) Outcome {
	s := p.At(g.Expiry)
	in := s > g.Strike
	if g.Type == Put {
		in = s < g.Strike
	}
	v := 0.0
	if in {
		v = g.Payout * d.DiscountFactor(g.Expiry)
	}
	return Outcome{Value: v, Time: g.Expiry}
}

func (g *Digital) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindDigital, g.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewDigital(g.Type, g.Strike, g.Payout, expiry)
}

// Asian pays on the average of the spot over the averaging dates, or over every grid step
// up to expiry when Dates is empty.
type Asian struct {
	Type      OptionType
	Strike    float64
	Expiry    float64
	Dates     []float64
	Geometric bool
}

func NewAsian(typ OptionType, strike, expiry float64, dates []float64, geometric bool) (*Asian, error) {
	if err := checkPositive(KindAsian, "strike", strike); err != nil {
		return nil, err
	}
	if err := checkPositive(KindAsian, "expiry", expiry); err != nil {
		return nil, err
	}
	if err := checkDates(KindAsian, "averaging dates", dates, expiry); err != nil {
		return nil, err
	}
	return &Asian{Type: typ, Strike: strike, Expiry: expiry, Dates: append([]float64(nil), dates...), Geometric: geometric}, nil
}

func (a *Asian) Kind() Kind         { return KindAsian }
func (a *Asian) Maturity() float64  { return a.Expiry }
func (a *Asian) sealed()            {}
func (a *Asian) Fixings() []float64 { return withExpiry(a.Dates, a.Expiry) }

func (a *Asian) Evaluate(p *simulation.Path, d Discounter) Outcome {
	idx := monitored(p, a.Dates, a.Expiry)
	avg := 0.0
	for _, i := range idx {
		if a.Geometric {
			avg += math.Log(p.Spot[i])
		} else {
			avg += p.Spot[i]
		}
	}
	avg /= float64(len(idx))
	if a.Geometric {
		avg = math.Exp(avg)
	}
	return Outcome{Value: a.Type.payoff(avg, a.Strike) * d.DiscountFactor(a.Expiry), Time: a.Expiry}
}

func (a *Asian) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindAsian, a.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewAsian(a.Type, a.Strike, expiry, rollDates(a.Dates, dt), a.Geometric)
}

// Lookback pays on the extreme of the path. With a fixed strike a call receives
// max(S_max − K, 0) and a put max(K − S_min, 0); floating-strike calls receive S_T − S_min
// and puts S_max − S_T. Extremes are taken over grid steps only.
type Lookback struct {
	Type     OptionType
	Strike   float64
	Expiry   float64
	Floating bool
}

func NewLookback(typ OptionType, strike, expiry float64, floating bool) (*Lookback, error) {
	if !floating {
		if err := checkPositive(KindLookback, "strike", strike); err != nil {
			return nil, err
		}
	}
	if err := checkPositive(KindLookback, "expiry", expiry); err != nil {
		return nil, err
	}
	return &Lookback{Type: typ, Strike: strike, Expiry: expiry, Floating: floating}, nil
}

func (l *Lookback) Kind() Kind         { return KindLookback }
func (l *Lookback) Maturity() float64  { return l.Expiry }
func (l *Lookback) sealed()            {}
func (l *Lookback) Fixings() []float64 { return []float64{l.Expiry} }

func (l *Lookback) Evaluate(p *simulation.Path, d Discounter) Outcome {
	last := p.Index(l.Expiry)
	lo, hi := p.Spot[0], p.Spot[0]
	for _, s := range p.Spot[1 : last+1] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	sT := p.Spot[last]

	var v float64
	switch {
	case l.Floating && l.Type == Call:
		v = sT - lo
	case l.Floating:
		v = hi - sT
	case l.Type == Call:
		v = math.Max(hi-l.Strike, 0)
	default:
		v = math.Max(l.Strike-lo, 0)
	}
	return Outcome{Value: v * d.DiscountFactor(l.Expiry), Time: l.Expiry}
}

func (l *Lookback) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(KindLookback, l.Expiry, dt)
	if err != nil {
		return nil, err
	}
	return NewLookback(l.Type, l.Strike, expiry, l.Floating)
}
