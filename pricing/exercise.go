package pricing

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

// minRegressionPaths is the fewest in-the-money paths a date needs before its
// continuation value is regressed; below it the date is never an exercise opportunity.
const minRegressionPaths = 4 * products.BasisSize

// fitBoundary estimates the exercise policy by Longstaff–Schwartz on an independent pilot
// set of paths: walking the exercise dates backwards, the discounted realised cashflow of
// in-the-money paths is regressed on the basis of moneyness, and a path's cashflow is
// replaced by immediate exercise wherever that beats the fitted continuation.
// The main simulation then applies the boundary, which keeps the estimate low-biased.
func (e *Engine) fitBoundary(ctx context.Context, snap *market.Snapshot, grid simulation.Grid, am *products.American) (*products.Boundary, error) {
	pilot := grid.WithPaths(min(e.pilotPaths, grid.NumPaths))
	pilot.Seed = simulation.DeriveSeed(grid.Seed, 1)
	proc, err := simulation.NewProcess(snap, pilot)
	if err != nil {
		return nil, err
	}

	var (
		times []float64
		spots [][]float64 // [path][exercise date]
	)
	err = simulation.Walk(ctx, proc, pilot, func(_ int, p *simulation.Path) error {
		idx := am.ExerciseIndices(p)
		if times == nil {
			times = make([]float64, len(idx))
			for j, i := range idx {
				times[j] = p.Times[i]
			}
		}
		row := make([]float64, len(idx))
		for j, i := range idx {
			row[j] = p.Spot[i]
		}
		spots = append(spots, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := len(times)
	cash := make([]float64, len(spots))
	when := make([]float64, len(spots))
	for k, row := range spots {
		cash[k] = am.Intrinsic(row[m-1])
		when[k] = times[m-1]
	}

	boundary := &products.Boundary{Coef: make([][]float64, m-1)}
	for j := m - 2; j >= 0; j-- {
		var itm []int
		for k, row := range spots {
			if am.Intrinsic(row[j]) > 0 {
				itm = append(itm, k)
			}
		}
		if len(itm) < minRegressionPaths {
			continue
		}

		dfj := snap.DiscountFactor(times[j])
		x := mat.NewDense(len(itm), products.BasisSize, nil)
		y := mat.NewVecDense(len(itm), nil)
		for r, k := range itm {
			products.Basis(am.Moneyness(spots[k][j]), x.RawRowView(r))
			y.SetVec(r, cash[k]*snap.DiscountFactor(when[k])/dfj)
		}
		var beta mat.VecDense
		if err := beta.SolveVec(x, y); err != nil {
			e.log.Debugf("exercise date %d: regression failed: %v", j, err)
			continue
		}
		coef := make([]float64, products.BasisSize)
		for i := range coef {
			coef[i] = beta.AtVec(i)
		}
		boundary.Coef[j] = coef

		for _, k := range itm {
			s := spots[k][j]
			cont, _ := boundary.Continuation(j, am.Moneyness(s))
			if ex := am.Intrinsic(s); ex >= cont {
				cash[k] = ex
				when[k] = times[j]
			}
		}
	}
	return boundary, nil
}
