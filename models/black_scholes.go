package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxIterations = 100
	epsilon       = 1e-10
)

// BSResult is a closed-form Black-Scholes-Merton valuation with its analytic Greeks.
type BSResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// BlackScholes prices a European option with continuous dividend yield q.
func BlackScholes(S, K, T, r, q, sigma float64, isCall bool) BSResult {
	if T <= 0 || sigma <= 0 {
		intrinsic := math.Max(S-K, 0)
		if !isCall {
			intrinsic = math.Max(K-S, 0)
		}
		return BSResult{Price: intrinsic}
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	dq := math.Exp(-q * T)
	dr := math.Exp(-r * T)

	var res BSResult
	if isCall {
		res.Price = S*dq*normCDF(d1) - K*dr*normCDF(d2)
		res.Delta = dq * normCDF(d1)
		res.Theta = -S*dq*normPDF(d1)*sigma/(2*sqrtT) - r*K*dr*normCDF(d2) + q*S*dq*normCDF(d1)
		res.Rho = K * T * dr * normCDF(d2)
	} else {
		res.Price = K*dr*normCDF(-d2) - S*dq*normCDF(-d1)
		res.Delta = dq * (normCDF(d1) - 1)
		res.Theta = -S*dq*normPDF(d1)*sigma/(2*sqrtT) + r*K*dr*normCDF(-d2) - q*S*dq*normCDF(-d1)
		res.Rho = -K * T * dr * normCDF(-d2)
	}
	res.Gamma = dq * normPDF(d1) / (S * sigma * sqrtT)
	res.Vega = S * dq * normPDF(d1) * sqrtT

	return res
}

// BlackPrice is the undiscounted-forward form used when only total variance is known:
// DF·(F·N(d1) − K·N(d2)) for calls.
func BlackPrice(F, K, w, df float64, isCall bool) float64 {
	if w <= 0 {
		if isCall {
			return df * math.Max(F-K, 0)
		}
		return df * math.Max(K-F, 0)
	}
	sw := math.Sqrt(w)
	d1 := (math.Log(F/K) + 0.5*w) / sw
	d2 := d1 - sw
	if isCall {
		return df * (F*normCDF(d1) - K*normCDF(d2))
	}
	return df * (K*normCDF(-d2) - F*normCDF(-d1))
}

// ImpliedVolatility inverts BlackScholes by Newton's method, falling back to bisection
// when vega vanishes. It fails rather than returning a guess.
func ImpliedVolatility(targetPrice, S, K, T, r, q float64, isCall bool) (float64, error) {
	if T <= 0 {
		return 0, fmt.Errorf("implied vol: non-positive maturity %v", T)
	}
	intrinsic := BlackScholes(S, K, T, r, q, 1e-12, isCall).Price
	if targetPrice < intrinsic-epsilon {
		return 0, fmt.Errorf("implied vol: price %v below intrinsic %v", targetPrice, intrinsic)
	}

	lo, hi := 1e-6, 5.0
	sigma := 0.3 // Initial guess
	for i := 0; i < maxIterations; i++ {
		res := BlackScholes(S, K, T, r, q, sigma, isCall)
		diff := res.Price - targetPrice
		if math.Abs(diff) < epsilon {
			return sigma, nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}

		next := sigma - diff/res.Vega
		if res.Vega < epsilon || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		sigma = next
		if hi-lo < epsilon {
			return sigma, nil
		}
	}
	return 0, fmt.Errorf("implied vol: no convergence for price %v (K=%v, T=%v)", targetPrice, K, T)
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
