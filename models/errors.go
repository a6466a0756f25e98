package models

import (
	"errors"
	"fmt"
)

// ErrNotConverged is returned by a Minimizer that stops on an iteration or evaluation limit.
var ErrNotConverged = errors.New("optimizer did not converge")

// CalibrationError reports a failed fit: non-convergence, a violated no-arbitrage
// bound or a broken ATM-variance monotonicity. No surface accompanies it.
type CalibrationError struct {
	Model  SurfaceKind
	Reason string
	Err    error
}

func (e *CalibrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("calibration (%s): %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("calibration (%s): %s", e.Model, e.Reason)
}

func (e *CalibrationError) Unwrap() error { return e.Err }

func calibrationErr(kind SurfaceKind, err error, format string, args ...any) *CalibrationError {
	return &CalibrationError{Model: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// LocalVolError is returned when the Dupire construction hits too many nodes with a
// vanishing convexity denominator or a negative local variance. It is recoverable:
// the caller may keep pricing on the parametric surface the grid was derived from.
type LocalVolError struct {
	BadNodes   int
	TotalNodes int
	Epsilon    float64
	// First offending node.
	Strike   float64
	Maturity float64
}

func (e *LocalVolError) Error() string {
	return fmt.Sprintf("local vol: %d of %d nodes unstable (denominator below %g or negative variance), first at K=%g T=%g",
		e.BadNodes, e.TotalNodes, e.Epsilon, e.Strike, e.Maturity)
}
