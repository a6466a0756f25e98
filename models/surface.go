// Package models holds the volatility models a market snapshot can carry: parametric
// smiles (SVI, SSVI), the Heston stochastic-volatility parameterisation and a Dupire
// local-volatility grid, plus their calibration routines.
package models

import (
	"fmt"
	"math"
)

// SurfaceKind tags the closed set of volatility models.
type SurfaceKind int

const (
	KindFlat SurfaceKind = iota
	KindSVI
	KindSSVI
	KindHeston
	KindLocalVol
)

func (k SurfaceKind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindSVI:
		return "svi"
	case KindSSVI:
		return "ssvi"
	case KindHeston:
		return "heston"
	case KindLocalVol:
		return "localvol"
	default:
		return fmt.Sprintf("SurfaceKind(%d)", int(k))
	}
}

// ParseSurfaceKind maps a model name to its kind.
func ParseSurfaceKind(s string) (SurfaceKind, error) {
	for _, k := range []SurfaceKind{KindFlat, KindSVI, KindSSVI, KindHeston, KindLocalVol} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown volatility model %q", s)
}

// Surface is any volatility model a snapshot can hold. Values are immutable: BumpVol
// returns a new surface shifted by dv in volatility terms.
type Surface interface {
	Kind() SurfaceKind
	BumpVol(dv float64) Surface
}

// Implied surfaces answer total implied variance at log-moneyness k = ln(K/F(T)).
type Implied interface {
	Surface
	TotalVariance(k, t float64) float64
}

// Local surfaces answer instantaneous variance at spot level s and time t.
type Local interface {
	Surface
	LocalVariance(s, t float64) float64
}

// Flat is a constant implied volatility surface.
type Flat struct {
	Sigma float64
}

func NewFlat(sigma float64) (Flat, error) {
	if sigma <= 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return Flat{}, fmt.Errorf("flat surface: sigma must be positive, got %v", sigma)
	}
	return Flat{Sigma: sigma}, nil
}

func (f Flat) Kind() SurfaceKind { return KindFlat }

func (f Flat) TotalVariance(k, t float64) float64 { return f.Sigma * f.Sigma * t }

func (f Flat) BumpVol(dv float64) Surface { return Flat{Sigma: math.Max(f.Sigma+dv, 0)} }

// volShift applies a parallel implied-vol shift to any implied surface.
type volShift struct {
	base Implied
	dv   float64
}

func shiftImplied(base Implied, dv float64) Implied {
	if s, ok := base.(volShift); ok {
		return volShift{base: s.base, dv: s.dv + dv}
	}
	return volShift{base: base, dv: dv}
}

func (s volShift) Kind() SurfaceKind { return s.base.Kind() }

func (s volShift) TotalVariance(k, t float64) float64 {
	if t <= 0 {
		return 0
	}
	vol := math.Sqrt(math.Max(s.base.TotalVariance(k, t), 0)/t) + s.dv
	if vol < 0 {
		vol = 0
	}
	return vol * vol * t
}

func (s volShift) BumpVol(dv float64) Surface { return shiftImplied(s, dv) }

// ImpliedVol is the Black volatility of an implied surface at (k, t).
func ImpliedVol(s Implied, k, t float64) float64 {
	if t <= 0 {
		return 0
	}
	return math.Sqrt(math.Max(s.TotalVariance(k, t), 0) / t)
}
