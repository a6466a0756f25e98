// Package simulation generates asset-price paths. Paths are a pure function of the
// market, the grid and the seed: draws are keyed by (seed, path, step), so any path
// can be reproduced alone and bumped markets see the same noise as the base case.
package simulation

import (
	"context"
	"fmt"
	"math"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
)

// Process simulates one path at a time into a caller-owned buffer. Implementations are
// immutable after construction and safe to share between workers.
type Process interface {
	// Factors is 1 for spot-only dynamics and 2 when variance is simulated too.
	Factors() int
	Simulate(p *Path, s *Stream, pathIndex int)
	Name() string
}

// NewProcess picks the dynamics matching the snapshot's volatility model: lognormal for
// implied surfaces, full-truncation Heston for Heston, and local-vol for Dupire grids.
func NewProcess(snap *market.Snapshot, g Grid) (Process, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	drift := stepDrifts(snap, g)

	switch surface := snap.Surface().(type) {
	case *models.HestonModel:
		if err := surface.Validate(); err != nil {
			return nil, &Error{Reason: "invalid heston parameters", Path: -1, Err: err}
		}
		return &Heston{model: *surface, s0: snap.Spot(), dt: g.Dt(), drift: drift}, nil
	case models.Local:
		return &LocalVol{surface: surface, s0: snap.Spot(), dt: g.Dt(), drift: drift, times: stepTimes(g)}, nil
	case models.Implied:
		variance, err := stepVariances(surface, g)
		if err != nil {
			return nil, err
		}
		return &Lognormal{s0: snap.Spot(), dt: g.Dt(), drift: drift, variance: variance}, nil
	default:
		return nil, Errorf("no dynamics for volatility model %v", snap.Surface().Kind())
	}
}

// stepDrifts is the risk-neutral log drift per step: the curve's forward rate over the
// step less the dividend yield.
func stepDrifts(snap *market.Snapshot, g Grid) []float64 {
	out := make([]float64, g.NumSteps)
	for i := range out {
		out[i] = snap.Curve().ForwardRate(g.Time(i), g.Time(i+1)) - snap.DividendYield()
	}
	return out
}

func stepTimes(g Grid) []float64 {
	out := make([]float64, g.NumSteps)
	for i := range out {
		out[i] = g.Time(i)
	}
	return out
}

// stepVariances reduces an implied surface to a deterministic instantaneous variance per
// step: the increment of at-the-money-forward total variance over the step.
func stepVariances(s models.Implied, g Grid) ([]float64, error) {
	out := make([]float64, g.NumSteps)
	prev := 0.0
	for i := range out {
		w := s.TotalVariance(0, g.Time(i+1))
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, Errorf("implied variance not finite at t=%v", g.Time(i+1))
		}
		out[i] = math.Max(w-prev, 0) / g.Dt()
		prev = math.Max(w, prev)
	}
	return out, nil
}

// Walk simulates every path of the grid in order into one reused buffer and hands each
// to fn. It stops at the first error from fn or when ctx is done.
func Walk(ctx context.Context, proc Process, g Grid, fn func(i int, p *Path) error) error {
	return WalkRange(ctx, proc, g, 0, g.NumPaths, fn)
}

// WalkRange is Walk restricted to path indices [from, to). Each call owns its buffer
// and stream, so disjoint ranges can run concurrently.
func WalkRange(ctx context.Context, proc Process, g Grid, from, to int, fn func(i int, p *Path) error) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if from < 0 || to > g.NumPaths || from > to {
		return Errorf("path range [%d, %d) outside grid of %d paths", from, to, g.NumPaths)
	}
	path := NewPath(g, proc.Factors())
	stream := NewStream(g.Seed)
	for i := from; i < to; i++ {
		if (i-from)%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		proc.Simulate(path, stream, i)
		if !path.Finite() {
			return &Error{Reason: "non-finite state", Path: i}
		}
		if err := fn(i, path); err != nil {
			return err
		}
	}
	return nil
}

// GeneratePaths retains every path of the grid. Memory grows with NumPaths·NumSteps; it
// exists for diagnostics and tests, pricing streams through Walk-style buffers instead.
func GeneratePaths(ctx context.Context, snap *market.Snapshot, g Grid) ([]*Path, error) {
	proc, err := NewProcess(snap, g)
	if err != nil {
		return nil, err
	}
	paths := make([]*Path, 0, g.NumPaths)
	err = Walk(ctx, proc, g, func(_ int, p *Path) error {
		paths = append(paths, p.Clone())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate paths: %w", err)
	}
	return paths, nil
}
