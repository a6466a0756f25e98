// Package pricing runs Monte Carlo valuations: it simulates paths for a market snapshot,
// evaluates a product on each, and reduces the discounted outcomes to a price with its
// standard error. Sensitivities are finite differences over re-pricings that share the
// base case's random numbers.
package pricing

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bcdannyboy/mcprice/logger"
	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

const (
	defaultBlockSize  = 512
	defaultConfidence = 0.95
	defaultPilotPaths = 20000
)

// Engine prices products. It holds no per-request state and may be shared.
type Engine struct {
	workers    int
	blockSize  int
	confidence float64
	pilotPaths int
	log        *logger.Logger
	progress   func(done, total int)
}

// Option configures an Engine. Options given an out-of-range value leave the setting at
// its default; callers that take settings from users validate them first, as
// config.Load does.
type Option func(*Engine)

// WithWorkers bounds the number of path blocks simulated concurrently. n < 1 is ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithBlockSize sets how many consecutive paths form one unit of work. n < 1 is ignored.
func WithBlockSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.blockSize = n
		}
	}
}

// WithConfidence sets the two-sided confidence level of the reported interval. Levels
// outside (0, 1) are ignored.
func WithConfidence(c float64) Option {
	return func(e *Engine) {
		if c > 0 && c < 1 {
			e.confidence = c
		}
	}
}

// WithPilotPaths caps the paths used to fit early-exercise boundaries. n < 2 is ignored.
func WithPilotPaths(n int) Option {
	return func(e *Engine) {
		if n > 1 {
			e.pilotPaths = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithProgress registers a callback invoked from worker goroutines after each block
// with the number of paths finished so far.
func WithProgress(fn func(done, total int)) Option {
	return func(e *Engine) { e.progress = fn }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		workers:    runtime.GOMAXPROCS(0),
		blockSize:  defaultBlockSize,
		confidence: defaultConfidence,
		pilotPaths: defaultPilotPaths,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Price values product against snap on grid. The result depends only on the inputs and
// the grid seed, not on the worker count. Cancelling ctx returns its error and no result.
func (e *Engine) Price(ctx context.Context, snap *market.Snapshot, product products.Product, grid simulation.Grid) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if grid.NumPaths < 2 {
		return nil, simulation.Errorf("at least 2 paths are needed for a standard error, got %d", grid.NumPaths)
	}
	if grid.Horizon < product.Maturity()-1e-9 {
		return nil, simulation.Errorf("grid horizon %v ends before product maturity %v", grid.Horizon, product.Maturity())
	}
	if err := checkDates(product, grid); err != nil {
		return nil, err
	}

	proc, err := simulation.NewProcess(snap, grid)
	if err != nil {
		return nil, err
	}
	log := e.log.WithFields(map[string]interface{}{
		"run_id":  runID,
		"product": product.Kind().String(),
		"process": proc.Name(),
	})
	log.Debugf("pricing %d paths x %d steps over %.4gy", grid.NumPaths, grid.NumSteps, grid.Horizon)

	if h, ok := snap.Surface().(*models.HestonModel); ok && !h.Feller() {
		log.Warnf("feller condition violated: 2*kappa*theta=%.4g < xi^2=%.4g", 2*h.Kappa*h.Theta, h.Xi*h.Xi)
	}

	if am, ok := product.(*products.American); ok && am.Boundary() == nil {
		boundary, err := e.fitBoundary(ctx, snap, grid, am)
		if err != nil {
			return nil, fmt.Errorf("exercise boundary: %w", err)
		}
		product = am.WithBoundary(boundary)
	}

	acc, err := e.simulate(ctx, proc, grid, product, snap)
	if err != nil {
		return nil, err
	}

	se := acc.standardError()
	half := zScore(e.confidence) * se
	res := &Result{
		RunID:              runID,
		Price:              acc.mean,
		StandardError:      se,
		ConfidenceInterval: Interval{Low: acc.mean - half, High: acc.mean + half},
		Confidence:         e.confidence,
		Paths:              acc.n,
		ExpectedLife:       acc.life / float64(acc.n),
		Process:            proc.Name(),
		Elapsed:            time.Since(start),
	}
	if math.IsNaN(res.Price) || math.IsInf(res.Price, 0) || math.IsNaN(se) {
		return nil, simulation.Errorf("aggregate is not finite")
	}
	log.Infof("price %.6g ± %.3g (%d paths, %s)", res.Price, se, res.Paths, res.Elapsed)
	return res, nil
}

// simulate spreads fixed blocks of path indices over the workers and merges the block
// statistics in block order.
func (e *Engine) simulate(ctx context.Context, proc simulation.Process, grid simulation.Grid, product products.Product, d products.Discounter) (accumulator, error) {
	blocks := (grid.NumPaths + e.blockSize - 1) / e.blockSize
	partials := make([]accumulator, blocks)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for b := 0; b < blocks && gctx.Err() == nil; b++ {
		lo := b * e.blockSize
		hi := min(lo+e.blockSize, grid.NumPaths)
		acc := &partials[b]
		g.Go(func() error {
			err := simulation.WalkRange(gctx, proc, grid, lo, hi, func(i int, p *simulation.Path) error {
				out := product.Evaluate(p, d)
				if math.IsNaN(out.Value) || math.IsInf(out.Value, 0) {
					return &simulation.Error{Reason: fmt.Sprintf("non-finite payoff %v", out.Value), Path: i}
				}
				acc.add(out.Value, out.Time)
				return nil
			})
			if err != nil {
				return err
			}
			if e.progress != nil {
				e.progress(int(done.Add(int64(hi-lo))), grid.NumPaths)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return accumulator{}, err
	}
	if err := ctx.Err(); err != nil {
		return accumulator{}, err
	}

	var total accumulator
	for _, p := range partials {
		total.merge(p)
	}
	return total, nil
}

// checkDates rejects products that read the path between grid steps. Dates are strictly
// increasing, so two dates on the grid never share a step.
func checkDates(product products.Product, grid simulation.Grid) error {
	for _, t := range product.Fixings() {
		if !grid.OnGrid(t) {
			return simulation.Errorf("%s date %v falls between grid steps of %v; choose a step count that places it on the grid",
				product.Kind(), t, grid.Dt())
		}
	}
	return nil
}
