package products

import (
	"github.com/bcdannyboy/mcprice/simulation"
)

// BasisSize is the number of regression functions used for continuation values.
const BasisSize = 3

// Basis fills out with the regressors of moneyness x = S/K: 1, x, x².
func Basis(x float64, out []float64) {
	out[0] = 1
	out[1] = x
	out[2] = x * x
}

// Boundary is a fitted Longstaff–Schwartz exercise rule: for every exercise opportunity
// before expiry, the regression coefficients of the continuation value on Basis. A nil
// row means the fit had too few in-the-money paths and the holder never exercises there.
type Boundary struct {
	Coef [][]float64
}

// Continuation is the estimated discounted value at step j of holding on, in units of
// the exercise date's money.
func (b *Boundary) Continuation(j int, x float64) (float64, bool) {
	if b == nil || j >= len(b.Coef) || b.Coef[j] == nil {
		return 0, false
	}
	var basis [BasisSize]float64
	Basis(x, basis[:])
	v := 0.0
	for i, c := range b.Coef[j] {
		v += c * basis[i]
	}
	return v, true
}

// American may be exercised at every grid step up to expiry; listing Dates makes it
// Bermudan. Without a fitted boundary only exercise at expiry is considered, which is a
// lower bound; the pricing engine always fits one before pricing.
type American struct {
	Type     OptionType
	Strike   float64
	Expiry   float64
	Dates    []float64
	boundary *Boundary
}

func NewAmerican(typ OptionType, strike, expiry float64) (*American, error) {
	return newEarlyExercise(KindAmerican, typ, strike, expiry, nil)
}

// NewBermudan exercises on the listed dates; expiry is always an exercise date.
func NewBermudan(typ OptionType, strike, expiry float64, dates []float64) (*American, error) {
	if len(dates) == 0 {
		return nil, configErr(KindBermudan, "exercise dates", "at least one date required")
	}
	return newEarlyExercise(KindBermudan, typ, strike, expiry, dates)
}

func newEarlyExercise(kind Kind, typ OptionType, strike, expiry float64, dates []float64) (*American, error) {
	if err := checkPositive(kind, "strike", strike); err != nil {
		return nil, err
	}
	if err := checkPositive(kind, "expiry", expiry); err != nil {
		return nil, err
	}
	if err := checkDates(kind, "exercise dates", dates, expiry); err != nil {
		return nil, err
	}
	a := &American{Type: typ, Strike: strike, Expiry: expiry}
	if dates != nil {
		a.Dates = append([]float64(nil), dates...)
		if a.Dates[len(a.Dates)-1] < expiry {
			a.Dates = append(a.Dates, expiry)
		}
	}
	return a, nil
}

func (a *American) Kind() Kind {
	if a.Dates != nil {
		return KindBermudan
	}
	return KindAmerican
}

func (a *American) Maturity() float64  { return a.Expiry }
func (a *American) sealed()            {}
func (a *American) Fixings() []float64 { return withExpiry(a.Dates, a.Expiry) }

// ExerciseIndices are the path steps at which the holder may exercise, ending at expiry.
func (a *American) ExerciseIndices(p *simulation.Path) []int {
	return monitored(p, a.Dates, a.Expiry)
}

// Intrinsic is the undiscounted exercise value at spot s.
func (a *American) Intrinsic(s float64) float64 { return a.Type.payoff(s, a.Strike) }

// Moneyness is the regression variable of spot s.
func (a *American) Moneyness(s float64) float64 { return s / a.Strike }

// WithBoundary returns a copy that exercises by the given rule.
func (a *American) WithBoundary(b *Boundary) *American {
	c := *a
	c.boundary = b
	return &c
}

func (a *American) Boundary() *Boundary { return a.boundary }

func (a *American) Evaluate(p *simulation.Path, d Discounter) Outcome {
	idx := a.ExerciseIndices(p)
	for j, i := range idx[:len(idx)-1] {
		s := p.Spot[i]
		ex := a.Intrinsic(s)
		if ex <= 0 {
			continue
		}
		cont, ok := a.boundary.Continuation(j, a.Moneyness(s))
		if ok && ex >= cont {
			t := p.Times[i]
			return Outcome{Value: ex * d.DiscountFactor(t), Time: t}
		}
	}
	return Outcome{
		Value: a.Intrinsic(p.Spot[idx[len(idx)-1]]) * d.DiscountFactor(a.Expiry),
		Time:  a.Expiry,
	}
}

// Roll drops the fitted boundary; it belongs to the old schedule.
func (a *American) Roll(dt float64) (Product, error) {
	expiry, err := rollMaturity(a.Kind(), a.Expiry, dt)
	if err != nil {
		return nil, err
	}
	if a.Dates == nil {
		return NewAmerican(a.Type, a.Strike, expiry)
	}
	return NewBermudan(a.Type, a.Strike, expiry, rollDates(a.Dates, dt))
}
