package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

// Request is one self-contained pricing job. Market is used as given; when it is nil the
// surface is calibrated from Calibration first.
type Request struct {
	ID          string
	Market      *market.Snapshot
	Calibration *CalibrationRequest
	Product     products.Product
	Grid        simulation.Grid
	// Confidence overrides the engine's confidence level when set.
	Confidence float64
	// Bumps requests sensitivities; nil prices only.
	Bumps Bumps
}

// Run executes a request. Greeks, when requested, are attached to the returned result.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Product == nil {
		return nil, errors.New("pricing: request has no product")
	}
	eng := e
	if req.Confidence != 0 {
		if !(req.Confidence > 0 && req.Confidence < 1) {
			return nil, fmt.Errorf("pricing: confidence must be in (0, 1), got %v", req.Confidence)
		}
		c := *e
		c.confidence = req.Confidence
		eng = &c
	}
	if req.ID != "" {
		c := *eng
		c.log = eng.log.WithField("request_id", req.ID)
		eng = &c
	}

	snap := req.Market
	if snap == nil {
		if req.Calibration == nil {
			return nil, errors.New("pricing: request needs a market snapshot or a calibration")
		}
		cal, err := eng.Calibrate(*req.Calibration)
		if err != nil {
			return nil, err
		}
		snap, err = market.NewSnapshot(req.Calibration.Spot, req.Calibration.Curve, req.Calibration.DividendYield, cal.Surface)
		if err != nil {
			return nil, err
		}
	}

	if req.Bumps == nil {
		return eng.Price(ctx, snap, req.Product, req.Grid)
	}
	res, _, err := eng.priceWithGreeks(ctx, snap, req.Product, req.Grid, req.Bumps)
	return res, err
}

// LocalVolSpec configures a local-volatility calibration: the implied surface it is
// derived from, the node grid (quoted strikes and maturities when empty), the Dupire
// stability options and whether to fall back to the implied surface when the
// construction is unstable.
type LocalVolSpec struct {
	Base       models.SurfaceKind
	Strikes    []float64
	Maturities []float64
	Options    models.LocalVolOptions
	Fallback   bool
}

// CalibrationRequest fits a volatility model of Kind to market quotes.
type CalibrationRequest struct {
	Kind          models.SurfaceKind
	Quotes        []models.Quote
	Spot          float64
	Curve         *market.YieldCurve
	DividendYield float64
	Minimizer     models.Minimizer
	LocalVol      LocalVolSpec
}

// CalibratedSurface is a calibration outcome. Kind is what was actually produced; it
// differs from the requested kind only when a local-vol build fell back, in which case
// Fallback holds the instability that caused it. Unstable reports clamped nodes of a
// local-vol grid that was kept because they stayed within tolerance.
type CalibratedSurface struct {
	Surface   models.Surface
	Kind      models.SurfaceKind
	Requested models.SurfaceKind
	Feller    bool
	Fallback  *models.LocalVolError
	Unstable  *models.LocalVolError
}

// Calibrate fits the requested model. Heston fits that violate the Feller condition are
// returned with a warning; an unstable local-vol grid is an error unless the request allows
// falling back.
func (e *Engine) Calibrate(req CalibrationRequest) (*CalibratedSurface, error) {
	if !(req.Spot > 0) {
		return nil, fmt.Errorf("calibration: spot must be positive, got %v", req.Spot)
	}
	if req.Curve == nil {
		return nil, errors.New("calibration: yield curve is required")
	}
	mkt := models.MarketInputs{
		Spot:           req.Spot,
		DividendYield:  req.DividendYield,
		DiscountFactor: req.Curve.DiscountFactor,
	}
	log := e.log.WithField("kind", req.Kind.String())
	log.Debugf("calibrating to %d quotes", len(req.Quotes))

	out := &CalibratedSurface{Kind: req.Kind, Requested: req.Kind}
	switch req.Kind {
	case models.KindSVI, models.KindSSVI:
		s, err := calibrateImplied(req.Kind, req.Quotes, mkt, req.Minimizer)
		if err != nil {
			return nil, err
		}
		out.Surface = s
	case models.KindHeston:
		h, err := models.CalibrateHeston(req.Quotes, mkt, models.HestonOptions{Minimizer: req.Minimizer})
		if err != nil {
			return nil, err
		}
		out.Surface = h
		out.Feller = h.Feller()
		if !out.Feller {
			log.Warnf("calibrated heston violates feller: 2*kappa*theta=%.4g < xi^2=%.4g", 2*h.Kappa*h.Theta, h.Xi*h.Xi)
		}
	case models.KindLocalVol:
		baseKind := req.LocalVol.Base
		if baseKind != models.KindSVI {
			baseKind = models.KindSSVI
		}
		base, err := calibrateImplied(baseKind, req.Quotes, mkt, req.Minimizer)
		if err != nil {
			return nil, fmt.Errorf("local vol base surface: %w", err)
		}
		strikes, times := req.LocalVol.Strikes, req.LocalVol.Maturities
		if len(strikes) == 0 {
			strikes = distinct(req.Quotes, func(q models.Quote) float64 { return q.Strike })
		}
		if len(times) == 0 {
			times = distinct(req.Quotes, func(q models.Quote) float64 { return q.Maturity })
		}
		lv, err := models.BuildLocalVol(base, mkt, strikes, times, req.LocalVol.Options)
		var lvErr *models.LocalVolError
		switch {
		case err == nil:
			out.Surface = lv
			if lv.Unstable != nil {
				log.WithError(lv.Unstable).Warn("local vol kept with clamped nodes")
				out.Unstable = lv.Unstable
			}
		case errors.As(err, &lvErr) && req.LocalVol.Fallback:
			log.WithError(err).Warnf("local vol unstable, falling back to %s", baseKind)
			out.Surface = base
			out.Kind = baseKind
			out.Fallback = lvErr
		default:
			return nil, err
		}
	default:
		return nil, fmt.Errorf("calibration: %s surfaces are not calibrated", req.Kind)
	}
	log.Infof("calibrated %s", out.Kind)
	return out, nil
}

func calibrateImplied(kind models.SurfaceKind, quotes []models.Quote, mkt models.MarketInputs, minimizer models.Minimizer) (models.Implied, error) {
	if kind == models.KindSVI {
		s, err := models.CalibrateSVISurface(quotes, mkt, models.SVIOptions{Minimizer: minimizer})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := models.CalibrateSSVI(quotes, mkt, models.SSVIOptions{Minimizer: minimizer})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func distinct(quotes []models.Quote, field func(models.Quote) float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, q := range quotes {
		v := field(q)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
