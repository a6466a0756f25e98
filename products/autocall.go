package products

import (
	"errors"
	"fmt"

	"github.com/bcdannyboy/mcprice/simulation"
)

// AutocallVariant selects how conditional coupons are paid.
type AutocallVariant int

const (
	// Phoenix pays each coupon on the date its barrier is met.
	Phoenix AutocallVariant = iota
	// Memory also pays every coupon missed since the last payment once a barrier is met.
	Memory
	// Eagle accrues coupons whose barrier was met and pays them all at redemption.
	Eagle
	// Defensive is Phoenix with autocall triggers that step down through the schedule.
	Defensive
)

var variantNames = map[AutocallVariant]string{
	Phoenix:   "phoenix",
	Memory:    "memory",
	Eagle:     "eagle",
	Defensive: "defensive",
}

func (v AutocallVariant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("AutocallVariant(%d)", int(v))
}

func ParseAutocallVariant(s string) (AutocallVariant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown autocall variant %q", s)
}

// Observation is one date of an autocall schedule. Levels are fractions of the
// reference fixing; Coupon is a fraction of notional.
type Observation struct {
	Time          float64
	Trigger       float64
	CouponBarrier float64
	Coupon        float64
}

// Autocall redeems early at notional plus due coupons on the first observation where the
// underlying closes at or above its trigger. Left alive to the last date, it returns the
// notional if the final performance is at or above the protection barrier and
// notional·S_T/S_ref otherwise.
type Autocall struct {
	Variant    AutocallVariant
	Notional   float64
	Reference  float64
	Protection float64
	Schedule   []Observation
}

func NewAutocall(variant AutocallVariant, notional, reference, protection float64, schedule []Observation) (*Autocall, error) {
	if _, ok := variantNames[variant]; !ok {
		return nil, configErr(KindAutocall, "variant", "unknown variant %d", int(variant))
	}
	if err := checkPositive(KindAutocall, "notional", notional); err != nil {
		return nil, err
	}
	if err := checkPositive(KindAutocall, "reference", reference); err != nil {
		return nil, err
	}
	if err := checkNonNegative(KindAutocall, "protection barrier", protection); err != nil {
		return nil, err
	}
	if len(schedule) == 0 {
		return nil, configErr(KindAutocall, "schedule", "coupon schedule is missing")
	}

	hasCoupon := false
	for i, o := range schedule {
		field := fmt.Sprintf("schedule[%d]", i)
		if !(o.Time > 0) {
			return nil, configErr(KindAutocall, field, "observation date must be positive, got %v", o.Time)
		}
		if i > 0 && o.Time <= schedule[i-1].Time {
			return nil, configErr(KindAutocall, field, "observation dates not strictly increasing (%v after %v)", o.Time, schedule[i-1].Time)
		}
		if err := checkPositive(KindAutocall, field+".trigger", o.Trigger); err != nil {
			return nil, err
		}
		if err := checkNonNegative(KindAutocall, field+".coupon_barrier", o.CouponBarrier); err != nil {
			return nil, err
		}
		if err := checkNonNegative(KindAutocall, field+".coupon", o.Coupon); err != nil {
			return nil, err
		}
		if variant == Defensive && i > 0 && o.Trigger > schedule[i-1].Trigger {
			return nil, configErr(KindAutocall, field+".trigger", "defensive triggers must step down, %v after %v", o.Trigger, schedule[i-1].Trigger)
		}
		hasCoupon = hasCoupon || o.Coupon > 0
	}
	if !hasCoupon {
		return nil, configErr(KindAutocall, "schedule", "no coupons in the schedule of a coupon-bearing autocall")
	}

	return &Autocall{
		Variant:    variant,
		Notional:   notional,
		Reference:  reference,
		Protection: protection,
		Schedule:   append([]Observation(nil), schedule...),
	}, nil
}

func (a *Autocall) Kind() Kind        { return KindAutocall }
func (a *Autocall) Maturity() float64 { return a.Schedule[len(a.Schedule)-1].Time }
func (a *Autocall) sealed()           {}

func (a *Autocall) Fixings() []float64 {
	out := make([]float64, len(a.Schedule))
	for i, o := range a.Schedule {
		out[i] = o.Time
	}
	return out
}

func (a *Autocall) Evaluate(p *simulation.Path, d Discounter) Outcome {
	pv := 0.0
	unpaid := 0.0 // missed coupons for Memory, accrued ones for Eagle
	last := len(a.Schedule) - 1

	for j, o := range a.Schedule {
		perf := p.At(o.Time) / a.Reference
		df := d.DiscountFactor(o.Time)

		due := 0.0
		if perf >= o.CouponBarrier {
			switch a.Variant {
			case Memory:
				due = o.Coupon + unpaid
				unpaid = 0
			case Eagle:
				unpaid += o.Coupon
			default:
				due = o.Coupon
			}
		} else if a.Variant == Memory {
			unpaid += o.Coupon
		}
		pv += a.Notional * due * df

		if perf >= o.Trigger {
			bonus := 0.0
			if a.Variant == Eagle {
				bonus = unpaid
			}
			pv += a.Notional * (1 + bonus) * df
			return Outcome{Value: pv, Time: o.Time}
		}

		if j == last {
			principal := a.Notional
			if perf < a.Protection {
				principal = a.Notional * perf
			} else if a.Variant == Eagle {
				principal += a.Notional * unpaid
			}
			pv += principal * df
		}
	}
	return Outcome{Value: pv, Time: a.Maturity()}
}

// Roll drops observations that fall into the past, together with their coupons.
func (a *Autocall) Roll(dt float64) (Product, error) {
	if _, err := rollMaturity(KindAutocall, a.Maturity(), dt); err != nil {
		return nil, err
	}
	var schedule []Observation
	for _, o := range a.Schedule {
		if o.Time-dt > 1e-12 {
			o.Time -= dt
			schedule = append(schedule, o)
		}
	}
	rolled, err := NewAutocall(a.Variant, a.Notional, a.Reference, a.Protection, schedule)
	if err != nil {
		// the surviving dates may carry no coupon; value them as a plain note
		var cfg *ConfigError
		if errors.As(err, &cfg) && cfg.Field == "schedule" {
			return &Autocall{Variant: a.Variant, Notional: a.Notional, Reference: a.Reference, Protection: a.Protection, Schedule: schedule}, nil
		}
		return nil, err
	}
	return rolled, nil
}
