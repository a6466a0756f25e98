// Package products evaluates contract payoffs on simulated paths. The set of products is
// closed: every payoff kind lives here and implements Product. Products are immutable
// values validated at construction and never modify the path they read.
package products

import (
	"fmt"
	"math"

	"github.com/bcdannyboy/mcprice/simulation"
)

// Kind tags the closed set of products.
type Kind int

const (
	KindEuropean Kind = iota
	KindDigital
	KindAsian
	KindLookback
	KindBarrier
	KindAmerican
	KindBermudan
	KindAutocall
	KindAirbag
	KindTwinWin
)

var kindNames = map[Kind]string{
	KindEuropean: "european",
	KindDigital:  "digital",
	KindAsian:    "asian",
	KindLookback: "lookback",
	KindBarrier:  "barrier",
	KindAmerican: "american",
	KindBermudan: "bermudan",
	KindAutocall: "autocall",
	KindAirbag:   "airbag",
	KindTwinWin:  "twinwin",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// OptionType is the call/put flag of vanilla payoffs.
type OptionType int

const (
	Call OptionType = iota
	Put
)

func (o OptionType) String() string {
	if o == Put {
		return "put"
	}
	return "call"
}

// ParseOptionType accepts "call" or "put".
func ParseOptionType(s string) (OptionType, error) {
	switch s {
	case "call":
		return Call, nil
	case "put":
		return Put, nil
	}
	return 0, fmt.Errorf("unknown option type %q", s)
}

func (o OptionType) payoff(s, k float64) float64 {
	if o == Put {
		return math.Max(k-s, 0)
	}
	return math.Max(s-k, 0)
}

// Discounter gives the discount factor from time 0 to t.
type Discounter interface {
	DiscountFactor(t float64) float64
}

// Outcome is the discounted value a path delivers and the time the product settled:
// the trigger date for early redemption or exercise, otherwise maturity.
type Outcome struct {
	Value float64
	Time  float64
}

// Product is a payoff evaluated against one simulated path.
type Product interface {
	Kind() Kind
	// Maturity is the last date the product needs the path for.
	Maturity() float64
	Evaluate(p *simulation.Path, d Discounter) Outcome
	// Fixings lists every time at which Evaluate reads the path, maturity included.
	// Paths are only known on grid steps, so each date must fall on one.
	Fixings() []float64
	// Roll moves the valuation date forward by dt: every date shifts by -dt and
	// observations that fall into the past are dropped.
	Roll(dt float64) (Product, error)

	sealed()
}

// ConfigError reports a malformed product specification. It is raised by the
// constructors, before any path is simulated.
type ConfigError struct {
	Product Kind
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("product %s: %s: %s", e.Product, e.Field, e.Reason)
}

func configErr(kind Kind, field, format string, args ...any) *ConfigError {
	return &ConfigError{Product: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func checkPositive(kind Kind, field string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return configErr(kind, field, "must be positive, got %v", v)
	}
	return nil
}

func checkNonNegative(kind Kind, field string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return configErr(kind, field, "must be non-negative, got %v", v)
	}
	return nil
}

// checkDates requires strictly increasing dates in (0, maturity].
func checkDates(kind Kind, field string, dates []float64, maturity float64) error {
	for i, d := range dates {
		if !(d > 0) || d > maturity+1e-12 {
			return configErr(kind, field, "date %v outside (0, %v]", d, maturity)
		}
		if i > 0 && d <= dates[i-1] {
			return configErr(kind, field, "dates not strictly increasing at index %d (%v after %v)", i, d, dates[i-1])
		}
	}
	return nil
}

// withExpiry returns dates followed by expiry unless it is already the last date.
func withExpiry(dates []float64, expiry float64) []float64 {
	out := append([]float64(nil), dates...)
	if n := len(out); n == 0 || out[n-1] < expiry {
		out = append(out, expiry)
	}
	return out
}

// rollDates shifts dates by -dt and drops those no longer in the future.
func rollDates(dates []float64, dt float64) []float64 {
	if dates == nil {
		return nil
	}
	out := make([]float64, 0, len(dates))
	for _, d := range dates {
		if d-dt > 1e-12 {
			out = append(out, d-dt)
		}
	}
	return out
}

func rollMaturity(kind Kind, maturity, dt float64) (float64, error) {
	if !(dt > 0) {
		return 0, configErr(kind, "roll", "step must be positive, got %v", dt)
	}
	if maturity-dt <= 1e-12 {
		return 0, configErr(kind, "roll", "rolling %v past maturity %v", dt, maturity)
	}
	return maturity - dt, nil
}

// monitored returns the path indices of dates, or every step in (0, maturity] when dates
// is empty. Indices are deduplicated so a coarse grid never counts a step twice.
func monitored(p *simulation.Path, dates []float64, maturity float64) []int {
	if len(dates) == 0 {
		last := p.Index(maturity)
		if last < 1 {
			return []int{last}
		}
		out := make([]int, 0, last)
		for i := 1; i <= last; i++ {
			out = append(out, i)
		}
		return out
	}
	out := make([]int, 0, len(dates))
	for _, d := range dates {
		i := p.Index(d)
		if n := len(out); n == 0 || out[n-1] != i {
			out = append(out, i)
		}
	}
	return out
}
