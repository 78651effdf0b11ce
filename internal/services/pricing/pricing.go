// Package pricing holds the coin catalog and computes how many coins a
// purchase credits. All amounts are decided here, server side.
package pricing

import (
	"strings"
)

// Package is a catalog entry. Stars is what the user pays, Coins what they
// get before any promotion.
type Package struct {
	Stars int64
	Coins int64
	Label string
}

// Promotion is a named fractional bonus, 0 < Bonus < 1.
type Promotion struct {
	Code  string
	Bonus float64
}

// Percent is the bonus as a whole percentage for display.
func (p Promotion) Percent() int {
	return int(p.Bonus * 100)
}

var catalog = []Package{
	{Stars: 50, Coins: 50, Label: "🌱 Start"},
	{Stars: 100, Coins: 100, Label: "⚡ Basic"},
	{Stars: 250, Coins: 250, Label: "🔥 Popular"},
	{Stars: 500, Coins: 500, Label: "💎 Advanced"},
	{Stars: 1000, Coins: 1000, Label: "👑 Maximum"},
}

// Keys are uppercase.
var promotions = map[string]float64{
	"VESNA26": 0.20,
}

// Catalog returns a copy of the package list in display order.
func Catalog() []Package {
	out := make([]Package, len(catalog))
	copy(out, catalog)

	return out
}

// FindPackage looks a package up by its price in stars.
func FindPackage(stars int64) (Package, bool) {
	for _, p := range catalog {
		if p.Stars == stars {
			return p, true
		}
	}

	return Package{}, false
}

// NormalizeCode trims and uppercases a user-supplied promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LookupPromotion resolves a promo code case-insensitively.
func LookupPromotion(code string) (Promotion, bool) {
	c := NormalizeCode(code)
	if c == "" {
		return Promotion{}, false
	}

	bonus, ok := promotions[c]
	if !ok {
		return Promotion{}, false
	}

	return Promotion{Code: c, Bonus: bonus}, true
}

// ComputeCredits applies a recognised promotion to base and rounds the
// result down to an even number. Unknown or empty codes are ignored.
func ComputeCredits(base int64, promoCode string) int64 {
	coins := base

	if p, ok := LookupPromotion(promoCode); ok {
		coins = int64(float64(coins) * (1 + p.Bonus))
	}

	return MakeEven(coins)
}

// MakeEven returns n, or n-1 when n is odd.
func MakeEven(n int64) int64 {
	if n%2 != 0 {
		return n - 1
	}

	return n
}
