package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Bar is one OHLC observation of the underlying.
type Bar struct {
	Open, High, Low, Close float64
}

// Estimator selects a realised-volatility estimator.
type Estimator int

const (
	CloseToClose Estimator = iota
	Parkinson
	GarmanKlass
	RogersSatchell
	YangZhang
)

var estimatorNames = map[Estimator]string{
	CloseToClose:   "close_to_close",
	Parkinson:      "parkinson",
	GarmanKlass:    "garman_klass",
	RogersSatchell: "rogers_satchell",
	YangZhang:      "yang_zhang",
}

func (e Estimator) String() string {
	if s, ok := estimatorNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Estimator(%d)", int(e))
}

func ParseEstimator(s string) (Estimator, error) {
	for e, name := range estimatorNames {
		if name == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown volatility estimator %q", s)
}

// RealizedVol annualises the per-period volatility of bars. periodsPerYear is 252 for
// daily bars.
func RealizedVol(bars []Bar, est Estimator, periodsPerYear float64) (float64, error) {
	if periodsPerYear <= 0 {
		return 0, fmt.Errorf("realized vol: periods per year must be positive, got %v", periodsPerYear)
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("realized vol: need at least 2 bars, got %d", len(bars))
	}
	for i, b := range bars {
		if !(b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0) || b.High < b.Low {
			return 0, fmt.Errorf("realized vol: bar %d is not a valid OHLC quote: %+v", i, b)
		}
	}

	var variance float64
	switch est {
	case CloseToClose:
		variance = closeToClose(bars)
	case Parkinson:
		variance = parkinson(bars)
	case GarmanKlass:
		variance = garmanKlass(bars)
	case RogersSatchell:
		variance = rogersSatchell(bars)
	case YangZhang:
		variance = yangZhang(bars)
	default:
		return 0, fmt.Errorf("realized vol: unknown estimator %d", int(est))
	}
	if variance < 0 || math.IsNaN(variance) {
		return 0, fmt.Errorf("realized vol: %s variance is %v", est, variance)
	}
	return math.Sqrt(variance * periodsPerYear), nil
}

// FlatFromHistory builds a flat surface at the realised volatility of bars.
func FlatFromHistory(bars []Bar, est Estimator, periodsPerYear float64) (Flat, error) {
	vol, err := RealizedVol(bars, est, periodsPerYear)
	if err != nil {
		return Flat{}, err
	}
	return NewFlat(vol)
}

func closeToClose(bars []Bar) float64 {
	returns := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		returns[i-1] = math.Log(bars[i].Close / bars[i-1].Close)
	}
	return stat.Variance(returns, nil)
}

func parkinson(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += sq(math.Log(b.High / b.Low))
	}
	return sum / (4 * float64(len(bars)) * math.Ln2)
}

func garmanKlass(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		hl := 0.5 * sq(math.Log(b.High/b.Low))
		co := (2*math.Ln2 - 1) * sq(math.Log(b.Close/b.Open))
		sum += hl - co
	}
	return sum / float64(len(bars))
}

func rogersSatchell(bars []Bar) float64 {
	sum := 0.0
	for _, b := range bars {
		sum += math.Log(b.High/b.Close)*math.Log(b.High/b.Open) +
			math.Log(b.Low/b.Close)*math.Log(b.Low/b.Open)
	}
	return sum / float64(len(bars))
}

// yangZhang combines overnight, open-to-close and Rogers–Satchell variances with the
// weight k that minimises the estimator's variance.
func yangZhang(bars []Bar) float64 {
	n := float64(len(bars))
	overnight := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		overnight[i-1] = math.Log(bars[i].Open / bars[i-1].Close)
	}
	openClose := make([]float64, len(bars))
	for i, b := range bars {
		openClose[i] = math.Log(b.Close / b.Open)
	}

	k := 0.34 / (1.34 + (n+1)/(n-1))
	return stat.Variance(overnight, nil) + k*stat.Variance(openClose, nil) + (1-k)*rogersSatchell(bars)
}
