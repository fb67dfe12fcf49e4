// Package pricing computes line subtotals and cart totals over immutable
// snapshots of a cart aggregate. It has no side effects and no catalog
// dependency: it trusts the unit price frozen into each line at add time,
// so it can be unit-tested without storage or a live product graph.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// minorUnitDigits is the rounding precision of a cart total. Totals are
// rounded once at the aggregate level, never per line, so rounding error
// does not compound across lines. Ties round half to even.
const minorUnitDigits = 2

type Line struct {
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Snapshot is a read-only copy of one cart's priced state.
type Snapshot struct {
	UserID   int64  `json:"user_id"`
	Currency string `json:"currency"`
	Items    []Line `json:"items"`
}

// Subtotal returns quantity x unit price for one line, unrounded.
func Subtotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums every line subtotal and rounds to minor-unit precision.
func Total(s Snapshot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Items {
		total = total.Add(Subtotal(l))
	}
	return total.RoundBank(minorUnitDigits)
}

// UnitCount returns the total number of units across all lines, not the
// number of distinct lines.
func UnitCount(s Snapshot) int {
	count := 0
	for _, l := range s.Items {
		count += l.Quantity
	}
	return count
}

func IsEmpty(s Snapshot) bool {
	return len(s.Items) == 0
}
