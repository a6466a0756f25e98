package pricing

import "fmt"

// GreeksError fails a sensitivity computation: an invalid bump or a failed re-pricing.
// The base price, if it succeeded, is unaffected.
type GreeksError struct {
	Greek  string
	Reason string
	Err    error
}

func (e *GreeksError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("greeks (%s): %s: %v", e.Greek, e.Reason, e.Err)
	}
	return fmt.Sprintf("greeks (%s): %s", e.Greek, e.Reason)
}

func (e *GreeksError) Unwrap() error { return e.Err }
