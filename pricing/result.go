package pricing

import "time"

// Interval is a two-sided confidence interval.
type Interval struct {
	Low  float64
	High float64
}

// Result is the outcome of one pricing request. It is a plain value so outer layers can
// serialise it however they like.
type Result struct {
	RunID              string
	Price              float64
	StandardError      float64
	ConfidenceInterval Interval
	Confidence         float64
	Paths              int
	// ExpectedLife is the mean settlement time over paths; below maturity for products
	// that redeem or exercise early.
	ExpectedLife float64
	Process      string
	Greeks       map[string]float64
	Elapsed      time.Duration
}
