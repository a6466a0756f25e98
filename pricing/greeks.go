package pricing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

// Bump keys. Spot is relative to spot, vol an absolute shift of volatility, rate an
// absolute parallel shift of the curve and time a roll forward in years.
const (
	BumpSpot = "spot"
	BumpVol  = "vol"
	BumpRate = "rate"
	BumpTime = "time"
)

const (
	Delta = "delta"
	Gamma = "gamma"
	Vega  = "vega"
	Rho   = "rho"
	Theta = "theta"
)

// Bumps selects the sensitivities to compute and their step sizes. Keys not present are
// skipped.
type Bumps map[string]float64

// DefaultBumps returns the standard step sizes for every supported bump.
func DefaultBumps() Bumps {
	return Bumps{
		BumpSpot: 0.01,
		BumpVol:  0.01,
		BumpRate: 0.0001,
		BumpTime: 1.0 / 365,
	}
}

// scenario is one re-pricing. All scenarios reuse the base grid seed, so the same random
// numbers drive every leg of a difference.
type scenario struct {
	name    string
	snap    *market.Snapshot
	product products.Product
	grid    simulation.Grid
	// step is the time actually rolled by the theta scenario.
	step float64
}

// Greeks returns central-difference delta, gamma, vega and rho and a forward-roll theta
// for the bumps given, each per unit of the bumped quantity.
func (e *Engine) Greeks(ctx context.Context, snap *market.Snapshot, product products.Product, grid simulation.Grid, bumps Bumps) (map[string]float64, error) {
	_, greeks, err := e.priceWithGreeks(ctx, snap, product, grid, bumps)
	return greeks, err
}

func (e *Engine) priceWithGreeks(ctx context.Context, snap *market.Snapshot, product products.Product, grid simulation.Grid, bumps Bumps) (*Result, map[string]float64, error) {
	for _, key := range sortedKeys(bumps) {
		switch key {
		case BumpSpot, BumpVol, BumpRate, BumpTime:
		default:
			return nil, nil, &GreeksError{Greek: key, Reason: "unknown bump"}
		}
		if !(bumps[key] > 0) {
			return nil, nil, &GreeksError{Greek: key, Reason: fmt.Sprintf("bump must be positive, got %v", bumps[key])}
		}
	}

	// A fitted exercise boundary is shared by the bumped legs so they differ only in the
	// market, not in the policy.
	if am, ok := product.(*products.American); ok && am.Boundary() == nil && grid.NumPaths >= 2 {
		if err := grid.Validate(); err == nil {
			boundary, err := e.fitBoundary(ctx, snap, grid, am)
			if err != nil {
				return nil, nil, &GreeksError{Greek: "base", Reason: "exercise boundary", Err: err}
			}
			product = am.WithBoundary(boundary)
		}
	}

	base, err := e.Price(ctx, snap, product, grid)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, err
		}
		return nil, nil, &GreeksError{Greek: "base", Reason: "base price failed", Err: err}
	}
	if len(bumps) == 0 {
		return base, map[string]float64{}, nil
	}

	scenarios, err := e.scenarios(snap, product, grid, bumps)
	if err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	prices := make(map[string]float64, len(scenarios))
	thetaStep := 0.0
	for _, sc := range scenarios {
		if sc.name == "time" {
			thetaStep = sc.step
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range scenarios {
		sc := sc
		g.Go(func() error {
			res, err := e.Price(gctx, sc.snap, sc.product, sc.grid)
			if err != nil {
				return &GreeksError{Greek: sc.name, Reason: "re-pricing failed", Err: err}
			}
			mu.Lock()
			prices[sc.name] = res.Price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}

	greeks := make(map[string]float64)
	p0 := base.Price
	if h, ok := bumps[BumpSpot]; ok {
		ds := h * snap.Spot()
		up, down := prices["spot_up"], prices["spot_down"]
		greeks[Delta] = (up - down) / (2 * ds)
		greeks[Gamma] = (up - 2*p0 + down) / (ds * ds)
	}
	if h, ok := bumps[BumpVol]; ok {
		greeks[Vega] = (prices["vol_up"] - prices["vol_down"]) / (2 * h)
	}
	if h, ok := bumps[BumpRate]; ok {
		greeks[Rho] = (prices["rate_up"] - prices["rate_down"]) / (2 * h)
	}
	if _, ok := bumps[BumpTime]; ok {
		greeks[Theta] = (prices["time"] - p0) / thetaStep
	}
	base.Greeks = greeks
	return base, greeks, nil
}

func (e *Engine) scenarios(snap *market.Snapshot, product products.Product, grid simulation.Grid, bumps Bumps) ([]scenario, error) {
	var out []scenario
	add := func(name string, s *market.Snapshot, err error) error {
		if err != nil {
			return &GreeksError{Greek: name, Reason: "bumped market", Err: err}
		}
		out = append(out, scenario{name: name, snap: s, product: product, grid: grid})
		return nil
	}

	if h, ok := bumps[BumpSpot]; ok {
		if h >= 1 {
			return nil, &GreeksError{Greek: Delta, Reason: fmt.Sprintf("relative spot bump %v would make spot non-positive", h)}
		}
		up, err := snap.WithSpot(snap.Spot() * (1 + h))
		if err := add("spot_up", up, err); err != nil {
			return nil, err
		}
		down, err := snap.WithSpot(snap.Spot() * (1 - h))
		if err := add("spot_down", down, err); err != nil {
			return nil, err
		}
	}
	if h, ok := bumps[BumpVol]; ok {
		up, err := snap.WithSurface(snap.Surface().BumpVol(h))
		if err := add("vol_up", up, err); err != nil {
			return nil, err
		}
		down, err := snap.WithSurface(snap.Surface().BumpVol(-h))
		if err := add("vol_down", down, err); err != nil {
			return nil, err
		}
	}
	if h, ok := bumps[BumpRate]; ok {
		up, err := snap.WithCurve(snap.Curve().Shift(h))
		if err := add("rate_up", up, err); err != nil {
			return nil, err
		}
		down, err := snap.WithCurve(snap.Curve().Shift(-h))
		if err := add("rate_down", down, err); err != nil {
			return nil, err
		}
	}
	if h, ok := bumps[BumpTime]; ok {
		if h >= grid.Horizon {
			return nil, &GreeksError{Greek: Theta, Reason: fmt.Sprintf("time bump %v reaches the grid horizon %v", h, grid.Horizon)}
		}
		sc, err := rollScenario(snap, product, grid, h)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// rollScenario ages product by h on a grid shortened to match. Keeping the step count
// and shrinking the horizon reuses every draw, which suits products read only at the
// horizon. When that moves a fixing off the grid, the roll is rounded to a whole number
// of steps instead and the step length is kept.
func rollScenario(snap *market.Snapshot, product products.Product, grid simulation.Grid, h float64) (scenario, error) {
	rolled, err := product.Roll(h)
	if err != nil {
		return scenario{}, &GreeksError{Greek: Theta, Reason: "product cannot be rolled", Err: err}
	}
	scaled := grid.WithHorizon(grid.Horizon - h)
	if checkDates(rolled, scaled) == nil {
		return scenario{name: "time", snap: snap, product: rolled, grid: scaled, step: h}, nil
	}

	k := int(math.Max(1, math.Round(h/grid.Dt())))
	if k >= grid.NumSteps {
		return scenario{}, &GreeksError{Greek: Theta, Reason: fmt.Sprintf("time bump %v rounds to %d of %d grid steps", h, k, grid.NumSteps)}
	}
	step := float64(k) * grid.Dt()
	rolled, err = product.Roll(step)
	if err != nil {
		return scenario{}, &GreeksError{Greek: Theta, Reason: "product cannot be rolled", Err: err}
	}
	shifted := grid
	shifted.NumSteps -= k
	shifted.Horizon = float64(shifted.NumSteps) * grid.Dt()
	return scenario{name: "time", snap: snap, product: rolled, grid: shifted, step: step}, nil
}

func sortedKeys(m Bumps) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
