package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xhhuango/json"
	"gopkg.in/yaml.v3"

	"github.com/bcdannyboy/mcprice/market"
	"github.com/bcdannyboy/mcprice/models"
	"github.com/bcdannyboy/mcprice/pricing"
	"github.com/bcdannyboy/mcprice/products"
	"github.com/bcdannyboy/mcprice/simulation"
)

// RequestFile is the on-disk form of a pricing request.
type RequestFile struct {
	ID          string             `json:"id" yaml:"id"`
	Market      *MarketConfig      `json:"market,omitempty" yaml:"market,omitempty"`
	Calibration *CalibrationConfig `json:"calibration,omitempty" yaml:"calibration,omitempty"`
	Product     ProductConfig      `json:"product" yaml:"product"`
	Grid        GridConfig         `json:"grid" yaml:"grid"`
	Confidence  float64            `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	// Greeks maps bump names (spot, vol, rate, time) to step sizes; a zero step takes the default.
	Greeks map[string]float64 `json:"greeks,omitempty" yaml:"greeks,omitempty"`
}

type CurveConfig struct {
	Rate   float64   `json:"rate,omitempty" yaml:"rate,omitempty"`
	Tenors []float64 `json:"tenors,omitempty" yaml:"tenors,omitempty"`
	Rates  []float64 `json:"rates,omitempty" yaml:"rates,omitempty"`
}

func (c CurveConfig) build() (*market.YieldCurve, error) {
	if len(c.Tenors) == 0 {
		return market.Flat(c.Rate), nil
	}
	return market.NewYieldCurve(c.Tenors, c.Rates)
}

type MarketConfig struct {
	Spot          float64       `json:"spot" yaml:"spot"`
	DividendYield float64       `json:"dividend_yield,omitempty" yaml:"dividend_yield,omitempty"`
	Curve         CurveConfig   `json:"curve" yaml:"curve"`
	Surface       SurfaceConfig `json:"surface" yaml:"surface"`
}

type SVISliceConfig struct {
	Maturity float64 `json:"maturity" yaml:"maturity"`
	A        float64 `json:"a" yaml:"a"`
	B        float64 `json:"b" yaml:"b"`
	Rho      float64 `json:"rho" yaml:"rho"`
	M        float64 `json:"m" yaml:"m"`
	Sigma    float64 `json:"sigma" yaml:"sigma"`
}

type SSVIConfig struct {
	Rho        float64   `json:"rho" yaml:"rho"`
	Eta        float64   `json:"eta" yaml:"eta"`
	Gamma      float64   `json:"gamma" yaml:"gamma"`
	Maturities []float64 `json:"maturities" yaml:"maturities"`
	Thetas     []float64 `json:"thetas" yaml:"thetas"`
}

type HestonConfig struct {
	V0    float64 `json:"v0" yaml:"v0"`
	Kappa float64 `json:"kappa" yaml:"kappa"`
	Theta float64 `json:"theta" yaml:"theta"`
	Xi    float64 `json:"xi" yaml:"xi"`
	Rho   float64 `json:"rho" yaml:"rho"`
}

type LocalVolGridConfig struct {
	Strikes  []float64   `json:"strikes" yaml:"strikes"`
	Times    []float64   `json:"times" yaml:"times"`
	Variance [][]float64 `json:"variance" yaml:"variance"`
}

type BarConfig struct {
	Open  float64 `json:"open" yaml:"open"`
	High  float64 `json:"high" yaml:"high"`
	Low   float64 `json:"low" yaml:"low"`
	Close float64 `json:"close" yaml:"close"`
}

// HistoryConfig sets a flat surface at the realised volatility of OHLC bars.
type HistoryConfig struct {
	Estimator      string      `json:"estimator,omitempty" yaml:"estimator,omitempty"`
	PeriodsPerYear float64     `json:"periods_per_year,omitempty" yaml:"periods_per_year,omitempty"`
	Bars           []BarConfig `json:"bars" yaml:"bars"`
}

// SurfaceConfig is an already-fitted volatility model. Only the block matching Kind is read.
type SurfaceConfig struct {
	Kind     string              `json:"kind" yaml:"kind"`
	Sigma    float64             `json:"sigma,omitempty" yaml:"sigma,omitempty"`
	History  *HistoryConfig      `json:"history,omitempty" yaml:"history,omitempty"`
	SVI      []SVISliceConfig    `json:"svi,omitempty" yaml:"svi,omitempty"`
	SSVI     *SSVIConfig         `json:"ssvi,omitempty" yaml:"ssvi,omitempty"`
	Heston   *HestonConfig       `json:"heston,omitempty" yaml:"heston,omitempty"`
	LocalVol *LocalVolGridConfig `json:"local_vol,omitempty" yaml:"local_vol,omitempty"`
}

func (s SurfaceConfig) build() (models.Surface, error) {
	kind, err := models.ParseSurfaceKind(s.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.KindFlat:
		if s.History != nil && s.Sigma == 0 {
			return s.History.build()
		}
		return models.NewFlat(s.Sigma)
	case models.KindSVI:
		slices := make([]models.SVISlice, len(s.SVI))
		for i, sl := range s.SVI {
			slices[i] = models.SVISlice{
				Maturity: sl.Maturity,
				Params:   models.SVIParams{A: sl.A, B: sl.B, Rho: sl.Rho, M: sl.M, Sigma: sl.Sigma},
			}
		}
		return models.NewSVI(slices...)
	case models.KindSSVI:
		if s.SSVI == nil {
			return nil, fmt.Errorf("surface: ssvi block missing")
		}
		return models.NewSSVI(s.SSVI.Rho, s.SSVI.Eta, s.SSVI.Gamma, s.SSVI.Maturities, s.SSVI.Thetas)
	case models.KindHeston:
		if s.Heston == nil {
			return nil, fmt.Errorf("surface: heston block missing")
		}
		h := s.Heston
		return models.NewHestonModel(h.V0, h.Kappa, h.Theta, h.Xi, h.Rho)
	case models.KindLocalVol:
		if s.LocalVol == nil {
			return nil, fmt.Errorf("surface: local_vol block missing")
		}
		return models.NewLocalVol(s.LocalVol.Strikes, s.LocalVol.Times, s.LocalVol.Variance)
	}
	return nil, fmt.Errorf("surface: unsupported kind %q", s.Kind)
}

func (h *HistoryConfig) build() (models.Surface, error) {
	est := models.YangZhang
	if h.Estimator != "" {
		var err error
		if est, err = models.ParseEstimator(h.Estimator); err != nil {
			return nil, err
		}
	}
	ppy := h.PeriodsPerYear
	if ppy == 0 {
		ppy = 252
	}
	bars := make([]models.Bar, len(h.Bars))
	for i, b := range h.Bars {
		bars[i] = models.Bar{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
	}
	return models.FlatFromHistory(bars, est, ppy)
}

type QuoteConfig struct {
	Strike     float64 `json:"strike" yaml:"strike"`
	Maturity   float64 `json:"maturity" yaml:"maturity"`
	ImpliedVol float64 `json:"implied_vol,omitempty" yaml:"implied_vol,omitempty"`
	Price      float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Type       string  `json:"type,omitempty" yaml:"type,omitempty"` // call (default) or put
}

type LocalVolConfig struct {
	Base           string    `json:"base,omitempty" yaml:"base,omitempty"`
	Strikes        []float64 `json:"strikes,omitempty" yaml:"strikes,omitempty"`
	Maturities     []float64 `json:"maturities,omitempty" yaml:"maturities,omitempty"`
	Epsilon        float64   `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	MaxBadFraction float64   `json:"max_bad_fraction,omitempty" yaml:"max_bad_fraction,omitempty"`
	Fallback       bool      `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// CalibrationConfig fits the surface from quotes instead of taking it from market.surface.
type CalibrationConfig struct {
	Kind          string         `json:"kind" yaml:"kind"`
	Spot          float64        `json:"spot" yaml:"spot"`
	DividendYield float64        `json:"dividend_yield,omitempty" yaml:"dividend_yield,omitempty"`
	Curve         CurveConfig    `json:"curve" yaml:"curve"`
	Quotes        []QuoteConfig  `json:"quotes" yaml:"quotes"`
	LocalVol      LocalVolConfig `json:"local_vol,omitempty" yaml:"local_vol,omitempty"`
	MaxIterations int            `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

type ObservationConfig struct {
	Time          float64 `json:"time" yaml:"time"`
	Trigger       float64 `json:"trigger" yaml:"trigger"`
	CouponBarrier float64 `json:"coupon_barrier" yaml:"coupon_barrier"`
	Coupon        float64 `json:"coupon" yaml:"coupon"`
}

// ProductConfig is a flat union over every product; Type selects which fields apply.
type ProductConfig struct {
	Type   string    `json:"type" yaml:"type"`
	Option string    `json:"option,omitempty" yaml:"option,omitempty"`
	Strike float64   `json:"strike,omitempty" yaml:"strike,omitempty"`
	Expiry float64   `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Dates  []float64 `json:"dates,omitempty" yaml:"dates,omitempty"`

	Payout    float64 `json:"payout,omitempty" yaml:"payout,omitempty"`
	Geometric bool    `json:"geometric,omitempty" yaml:"geometric,omitempty"`
	Floating  bool    `json:"floating,omitempty" yaml:"floating,omitempty"`

	Level     float64 `json:"level,omitempty" yaml:"level,omitempty"`
	Direction string  `json:"direction,omitempty" yaml:"direction,omitempty"`
	Knock     string  `json:"knock,omitempty" yaml:"knock,omitempty"`
	Rebate    float64 `json:"rebate,omitempty" yaml:"rebate,omitempty"`

	Variant    string              `json:"variant,omitempty" yaml:"variant,omitempty"`
	Notional   float64             `json:"notional,omitempty" yaml:"notional,omitempty"`
	Reference  float64             `json:"reference,omitempty" yaml:"reference,omitempty"`
	Protection float64             `json:"protection,omitempty" yaml:"protection,omitempty"`
	Schedule   []ObservationConfig `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	Barrier           float64 `json:"barrier,omitempty" yaml:"barrier,omitempty"`
	Participation     float64 `json:"participation,omitempty" yaml:"participation,omitempty"`
	Cap               float64 `json:"cap,omitempty" yaml:"cap,omitempty"`
	KnockOut          float64 `json:"knock_out,omitempty" yaml:"knock_out,omitempty"`
	UpParticipation   float64 `json:"up_participation,omitempty" yaml:"up_participation,omitempty"`
	DownParticipation float64 `json:"down_participation,omitempty" yaml:"down_participation,omitempty"`
	Floor             float64 `json:"floor,omitempty" yaml:"floor,omitempty"`
}

type GridConfig struct {
	Paths   int     `json:"paths,omitempty" yaml:"paths,omitempty"`
	Steps   int     `json:"steps,omitempty" yaml:"steps,omitempty"`
	Horizon float64 `json:"horizon,omitempty" yaml:"horizon,omitempty"`
	Seed    *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// LoadRequest reads a request file, trying YAML first and falling back to JSON.
func LoadRequest(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	return ParseRequest(data)
}

func ParseRequest(data []byte) (*RequestFile, error) {
	rf := &RequestFile{}
	if err := yaml.Unmarshal(data, rf); err != nil {
		*rf = RequestFile{}
		if jerr := json.Unmarshal(data, rf); jerr != nil {
			return nil, fmt.Errorf("parse request (tried YAML and JSON): %w", jerr)
		}
	}
	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return rf, nil
}

// Validate checks the structure of the file; numeric domains are checked by the
// constructors Build calls.
func (rf *RequestFile) Validate() error {
	if rf.Market == nil && rf.Calibration == nil {
		return fmt.Errorf("one of market or calibration is required")
	}
	if rf.Market != nil && rf.Calibration != nil {
		return fmt.Errorf("market and calibration are mutually exclusive")
	}
	if rf.Product.Type == "" {
		return fmt.Errorf("product.type is required")
	}
	if rf.Grid.Paths < 0 || rf.Grid.Steps < 0 || rf.Grid.Horizon < 0 {
		return fmt.Errorf("grid values must not be negative")
	}
	return nil
}

// LoadCalibration reads a request file and returns only its calibration block.
func LoadCalibration(path string, cfg *Config) (pricing.CalibrationRequest, error) {
	rf, err := LoadRequest(path)
	if err != nil {
		return pricing.CalibrationRequest{}, err
	}
	if rf.Calibration == nil {
		return pricing.CalibrationRequest{}, fmt.Errorf("request %s has no calibration block", path)
	}
	return rf.Calibration.Build(cfg)
}

// Build turns the file into an engine request, filling grid gaps from cfg. The horizon
// defaults to the product's maturity.
func (rf *RequestFile) Build(cfg *Config) (pricing.Request, error) {
	if err := rf.Validate(); err != nil {
		return pricing.Request{}, fmt.Errorf("invalid request: %w", err)
	}
	req := pricing.Request{ID: rf.ID, Confidence: rf.Confidence}

	spot := 0.0
	if rf.Market != nil {
		snap, err := rf.Market.Build()
		if err != nil {
			return pricing.Request{}, err
		}
		req.Market = snap
		spot = snap.Spot()
	} else {
		cal, err := rf.Calibration.Build(cfg)
		if err != nil {
			return pricing.Request{}, err
		}
		req.Calibration = &cal
		spot = cal.Spot
	}

	product, err := rf.Product.Build(spot)
	if err != nil {
		return pricing.Request{}, err
	}
	req.Product = product

	req.Grid = simulation.Grid{
		NumPaths: rf.Grid.Paths,
		NumSteps: rf.Grid.Steps,
		Horizon:  rf.Grid.Horizon,
		Seed:     cfg.Seed,
	}
	if req.Grid.NumPaths == 0 {
		req.Grid.NumPaths = cfg.Paths
	}
	if req.Grid.NumSteps == 0 {
		req.Grid.NumSteps = cfg.Steps
	}
	if req.Grid.Horizon == 0 {
		req.Grid.Horizon = product.Maturity()
	}
	if rf.Grid.Seed != nil {
		req.Grid.Seed = *rf.Grid.Seed
	}

	if rf.Greeks != nil {
		defaults := pricing.DefaultBumps()
		req.Bumps = pricing.Bumps{}
		for name, h := range rf.Greeks {
			if h == 0 {
				h = defaults[name]
			}
			req.Bumps[name] = h
		}
	}
	return req, nil
}

// Build assembles the market snapshot.
func (m *MarketConfig) Build() (*market.Snapshot, error) {
	curve, err := m.Curve.build()
	if err != nil {
		return nil, err
	}
	surface, err := m.Surface.build()
	if err != nil {
		return nil, err
	}
	return market.NewSnapshot(m.Spot, curve, m.DividendYield, surface)
}

// Build converts the calibration block, using cfg's iteration budget unless overridden.
func (c *CalibrationConfig) Build(cfg *Config) (pricing.CalibrationRequest, error) {
	kind, err := models.ParseSurfaceKind(c.Kind)
	if err != nil {
		return pricing.CalibrationRequest{}, err
	}
	curve, err := c.Curve.build()
	if err != nil {
		return pricing.CalibrationRequest{}, err
	}
	quotes := make([]models.Quote, len(c.Quotes))
	for i, q := range c.Quotes {
		typ := products.Call
		if q.Type != "" {
			if typ, err = products.ParseOptionType(q.Type); err != nil {
				return pricing.CalibrationRequest{}, fmt.Errorf("quote %d: %w", i, err)
			}
		}
		quotes[i] = models.Quote{
			Strike:     q.Strike,
			Maturity:   q.Maturity,
			ImpliedVol: q.ImpliedVol,
			Price:      q.Price,
			IsCall:     typ == products.Call,
		}
	}

	iters := c.MaxIterations
	if iters == 0 {
		iters = cfg.CalibrationMaxIter
	}
	req := pricing.CalibrationRequest{
		Kind:          kind,
		Quotes:        quotes,
		Spot:          c.Spot,
		Curve:         curve,
		DividendYield: c.DividendYield,
		Minimizer:     models.NelderMead{MaxIterations: iters},
		LocalVol: pricing.LocalVolSpec{
			Base:       models.KindSSVI,
			Strikes:    c.LocalVol.Strikes,
			Maturities: c.LocalVol.Maturities,
			Options: models.LocalVolOptions{
				Epsilon:        c.LocalVol.Epsilon,
				MaxBadFraction: c.LocalVol.MaxBadFraction,
			},
			Fallback: c.LocalVol.Fallback,
		},
	}
	if c.LocalVol.Base != "" {
		if req.LocalVol.Base, err = models.ParseSurfaceKind(c.LocalVol.Base); err != nil {
			return pricing.CalibrationRequest{}, err
		}
	}
	return req, nil
}

// Build constructs the product. Structured products without a reference fixing are
// struck at spot.
func (p ProductConfig) Build(spot float64) (products.Product, error) {
	typ := products.Call
	if p.Option != "" {
		var err error
		if typ, err = products.ParseOptionType(p.Option); err != nil {
			return nil, err
		}
	}
	reference := p.Reference
	if reference == 0 {
		reference = spot
	}

	switch strings.ToLower(p.Type) {
	case "european":
		return products.NewEuropean(typ, p.Strike, p.Expiry)
	case "digital":
		return products.NewDigital(typ, p.Strike, p.Payout, p.Expiry)
	case "asian":
		return products.NewAsian(typ, p.Strike, p.Expiry, p.Dates, p.Geometric)
	case "lookback":
		return products.NewLookback(typ, p.Strike, p.Expiry, p.Floating)
	case "barrier":
		dir, err := parseDirection(p.Direction)
		if err != nil {
			return nil, err
		}
		knock, err := parseKnock(p.Knock)
		if err != nil {
			return nil, err
		}
		return products.NewBarrier(typ, p.Strike, p.Expiry, p.Level, dir, knock, p.Rebate, p.Dates)
	case "american":
		return products.NewAmerican(typ, p.Strike, p.Expiry)
	case "bermudan":
		return products.NewBermudan(typ, p.Strike, p.Expiry, p.Dates)
	case "autocall":
		variant := products.Phoenix
		if p.Variant != "" {
			var err error
			if variant, err = products.ParseAutocallVariant(p.Variant); err != nil {
				return nil, err
			}
		}
		schedule := make([]products.Observation, len(p.Schedule))
		for i, o := range p.Schedule {
			schedule[i] = products.Observation{Time: o.Time, Trigger: o.Trigger, CouponBarrier: o.CouponBarrier, Coupon: o.Coupon}
		}
		return products.NewAutocall(variant, p.Notional, reference, p.Protection, schedule)
	case "airbag":
		return products.NewAirbag(p.Notional, reference, p.Expiry, p.Barrier, p.Participation, p.Cap)
	case "twinwin", "twin_win":
		return products.NewTwinWin(p.Notional, reference, p.Expiry, p.KnockOut, p.UpParticipation, p.DownParticipation, p.Cap, p.Floor, p.Dates)
	}
	return nil, fmt.Errorf("unknown product type %q", p.Type)
}

func parseDirection(s string) (products.Direction, error) {
	switch strings.ToLower(s) {
	case "up":
		return products.Up, nil
	case "down":
		return products.Down, nil
	}
	return 0, fmt.Errorf("barrier direction must be up or down, got %q", s)
}

func parseKnock(s string) (products.Knock, error) {
	switch strings.ToLower(s) {
	case "out":
		return products.Out, nil
	case "in":
		return products.In, nil
	}
	return 0, fmt.Errorf("barrier knock must be in or out, got %q", s)
}
