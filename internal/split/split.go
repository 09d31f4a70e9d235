// Package split provides fixed-precision fair-share allocation of a shared
// amount across participants.
package split

import (
	"sort"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit; their settlement scale is 0.
var zeroDecimalCurrencies = map[string]bool{
	"KRW": true,
	"JPY": true,
	"VND": true,
}

// ScaleFor returns the settlement scale (fractional digits) for a currency.
func ScaleFor(currency string) int32 {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

// Epsilon returns the smallest representable amount at the given scale.
// Balances below it are considered settled.
func Epsilon(scale int32) decimal.Decimal {
	return decimal.New(1, -scale)
}

// Allocate splits total into n shares, each rounded down to scale, with the
// whole leftover remainder added to the first share so that the shares sum to
// total exactly. n == 0 yields an empty result. Callers that need a stable
// notion of "first" should order participants before mapping shares onto
// them; SortParticipantIDs gives the canonical ascending-id order.
func Allocate(total decimal.Decimal, n int, scale int32) []decimal.Decimal {
	if n <= 0 {
		return nil
	}

	base := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(scale)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = base
	}

	remainder := total.Sub(base.Mul(decimal.NewFromInt(int64(n))))
	shares[0] = shares[0].Add(remainder)
	return shares
}

// SortParticipantIDs returns a copy of ids in ascending order, the canonical
// order used when mapping allocated shares onto participants.
func SortParticipantIDs(ids []string) []string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return sorted
}
