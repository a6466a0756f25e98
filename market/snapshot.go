// Package market holds the immutable market inputs of a pricing request.
package market

import (
	"errors"
	"fmt"
	"math"

	"github.com/bcdannyboy/mcprice/models"
)

// Snapshot is the market state a product is priced against. It is never mutated;
// the With* methods return bumped copies, which is what finite-difference Greeks rely on.
type Snapshot struct {
	spot          float64
	curve         *YieldCurve
	dividendYield float64
	surface       models.Surface
}

func NewSnapshot(spot float64, curve *YieldCurve, dividendYield float64, surface models.Surface) (*Snapshot, error) {
	if spot <= 0 || math.IsNaN(spot) || math.IsInf(spot, 0) {
		return nil, fmt.Errorf("market: spot must be positive, got %v", spot)
	}
	if curve == nil {
		return nil, errors.New("market: yield curve is required")
	}
	if surface == nil {
		return nil, errors.New("market: volatility surface is required")
	}
	if math.IsNaN(dividendYield) || math.IsInf(dividendYield, 0) {
		return nil, fmt.Errorf("market: dividend yield is not finite")
	}
	return &Snapshot{spot: spot, curve: curve, dividendYield: dividendYield, surface: surface}, nil
}

func (s *Snapshot) Spot() float64                    { return s.spot }
func (s *Snapshot) Curve() *YieldCurve               { return s.curve }
func (s *Snapshot) DividendYield() float64           { return s.dividendYield }
func (s *Snapshot) Surface() models.Surface          { return s.surface }
func (s *Snapshot) DiscountFactor(t float64) float64 { return s.curve.DiscountFactor(t) }

// Forward is the outright forward price of the underlying at t.
func (s *Snapshot) Forward(t float64) float64 {
	return s.spot * math.Exp(-s.dividendYield*t) / s.curve.DiscountFactor(t)
}

func (s *Snapshot) WithSpot(spot float64) (*Snapshot, error) {
	return NewSnapshot(spot, s.curve, s.dividendYield, s.surface)
}

func (s *Snapshot) WithCurve(curve *YieldCurve) (*Snapshot, error) {
	return NewSnapshot(s.spot, curve, s.dividendYield, s.surface)
}

func (s *Snapshot) WithSurface(surface models.Surface) (*Snapshot, error) {
	return NewSnapshot(s.spot, s.curve, s.dividendYield, surface)
}

// Inputs exposes the snapshot to calibration and local-vol construction, which work on
// plain market values rather than on the snapshot itself.
func (s *Snapshot) Inputs() models.MarketInputs {
	return models.MarketInputs{
		Spot:           s.spot,
		DividendYield:  s.dividendYield,
		DiscountFactor: s.curve.DiscountFactor,
	}
}
