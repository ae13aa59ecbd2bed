package economy

import "math"

// Floor2 truncates to two decimals. Prices and displayed currency go through it
// so fractional cents never accumulate.
func Floor2(x float64) float64 {
	return math.Floor(x*100) / 100
}

// Exponent is the cost-growth exponent for k under the given powerups.
func Exponent(k Kind, pw Powerups) float64 {
	d, ok := defs[k]
	if !ok {
		return 0
	}
	if k == Bootstrap && pw.Has(SlowAndSteady) {
		return 0.5
	}
	return d.Exponent
}

// Price is the cost of the next unit of k when owned units are already held.
// Unknown kinds are never affordable.
func Price(k Kind, owned int, pw Powerups) float64 {
	d, ok := defs[k]
	if !ok {
		return math.Inf(1)
	}
	if d.Flat {
		return d.BasePrice
	}
	if owned < 0 {
		owned = 0
	}
	return Floor2(d.BasePrice + math.Pow(float64(owned), Exponent(k, pw)))
}
