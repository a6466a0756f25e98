package models

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/integrate/quad"
)

const (
	cfUpperLimit = 200.0
	cfNodes      = 256
)

// CallPrice is the semi-closed-form Heston call price (two-probability form with the
// "little trap" branch choice). It serves calibration only; pricing always simulates.
func (h *HestonModel) CallPrice(S, K, r, q, T float64) float64 {
	if T <= 0 {
		return math.Max(S-K, 0)
	}
	p1 := h.probability(1, S, K, r, q, T)
	p2 := h.probability(2, S, K, r, q, T)
	price := S*math.Exp(-q*T)*p1 - K*math.Exp(-r*T)*p2
	lower := math.Max(S*math.Exp(-q*T)-K*math.Exp(-r*T), 0)
	return math.Max(price, lower)
}

func (h *HestonModel) probability(j int, S, K, r, q, T float64) float64 {
	lnK := math.Log(K)
	integrand := func(phi float64) float64 {
		if phi == 0 {
			phi = 1e-10
		}
		f := h.characteristic(j, phi, S, r, q, T)
		v := cmplx.Exp(complex(0, -phi*lnK)) * f / complex(0, phi)
		return real(v)
	}
	integral := quad.Fixed(integrand, 0, cfUpperLimit, cfNodes, quad.Legendre{}, 0)
	p := 0.5 + integral/math.Pi
	return math.Min(math.Max(p, 0), 1)
}

func (h *HestonModel) characteristic(j int, phi, S, r, q, T float64) complex128 {
	var u, b float64
	if j == 1 {
		u, b = 0.5, h.Kappa-h.Rho*h.Xi
	} else {
		u, b = -0.5, h.Kappa
	}
	a := h.Kappa * h.Theta
	xi2 := h.Xi * h.Xi
	iphi := complex(0, phi)
	rxi := complex(h.Rho*h.Xi, 0)
	bc := complex(b, 0)

	d := cmplx.Sqrt((rxi*iphi-bc)*(rxi*iphi-bc) - complex(xi2, 0)*(complex(2*u, 0)*iphi-complex(phi*phi, 0)))
	num := bc - rxi*iphi - d
	g := num / (bc - rxi*iphi + d)
	edt := cmplx.Exp(-d * complex(T, 0))

	C := complex((r-q)*T, 0)*iphi +
		complex(a/xi2, 0)*(num*complex(T, 0)-2*cmplx.Log((1-g*edt)/(1-g)))
	D := num / complex(xi2, 0) * (1 - edt) / (1 - g*edt)

	return cmplx.Exp(C + D*complex(h.V0, 0) + iphi*complex(math.Log(S), 0))
}
