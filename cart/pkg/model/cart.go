// Package model holds the cart aggregate: one user's shopping session,
// its line items, and its expiry bookkeeping.
package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/shopbot/cart/pkg/pricing"
	"github.com/Alturino/shopbot/internal/errors"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// LineItem is one product/variant entry in a cart. ProductName and
// UnitPrice are snapshots taken when the item was added; they are never
// re-read from the catalog, so historical carts survive repricing,
// renaming, and even deletion of the referenced product.
type LineItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// NewLineItem validates quantity and price bounds before the line enters
// a cart. An empty VariantID means the product was added without a
// variant, which is a distinct merge key from any concrete variant.
func NewLineItem(
	productID uuid.UUID,
	variantID string,
	productName string,
	quantity int,
	unitPrice decimal.Decimal,
) (LineItem, error) {
	if productID == uuid.Nil {
		return LineItem{}, errors.NewValidationError("product_id", "must not be empty")
	}
	if productName == "" {
		return LineItem{}, errors.NewValidationError("product_name", "must not be empty")
	}
	if quantity < MinQuantity || quantity > MaxQuantity {
		return LineItem{}, errors.NewValidationError(
			"quantity",
			fmt.Sprintf("must be between %d and %d, got %d", MinQuantity, MaxQuantity, quantity),
		)
	}
	if unitPrice.IsNegative() {
		return LineItem{}, errors.NewValidationError("unit_price", "must not be negative")
	}
	return LineItem{
		ProductID:   productID,
		VariantID:   variantID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}, nil
}

// Subtotal is quantity x unit price, unrounded. Rounding happens only at
// the aggregate level in the pricing package.
func (l LineItem) Subtotal() decimal.Decimal {
	return pricing.Subtotal(pricing.Line(l))
}

func (l LineItem) matches(productID uuid.UUID, variantID string) bool {
	return l.ProductID == productID && l.VariantID == variantID
}

// Cart is the aggregate for one user's shopping session. Exactly one cart
// exists per user; the store enforces that as a uniqueness invariant.
// An empty cart is valid and is itself subject to expiry.
type Cart struct {
	UserID    int64         `json:"user_id"`
	Currency  string        `json:"currency"`
	Items     []LineItem    `json:"items"`
	Ttl       time.Duration `json:"ttl"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ExpiresAt time.Time     `json:"expires_at"`

	// Revision counts successful saves; the store uses it to reject
	// writes based on an outdated read of the aggregate.
	Revision int64 `json:"revision"`
}

func NewCart(userID int64, currency string, ttl time.Duration) (Cart, error) {
	if userID == 0 {
		return Cart{}, errors.NewValidationError("user_id", "must not be zero")
	}
	if !currencyPattern.MatchString(currency) {
		return Cart{}, errors.NewValidationError("currency", "must be a 3-letter uppercase code")
	}
	if ttl <= 0 {
		return Cart{}, errors.NewValidationError("ttl", "must be positive")
	}
	now := time.Now().UTC()
	return Cart{
		UserID:    userID,
		Currency:  currency,
		Items:     []LineItem{},
		Ttl:       ttl,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// AddItem appends item or, when a line with the same (product, variant)
// key exists, increases that line's quantity clamped to MaxQuantity.
// Excess is dropped silently: the cart is a convenience, not an order.
// The existing line's frozen name and price always win a merge.
func (c *Cart) AddItem(item LineItem) error {
	if _, err := NewLineItem(item.ProductID, item.VariantID, item.ProductName, item.Quantity, item.UnitPrice); err != nil {
		return err
	}
	for i := range c.Items {
		if c.Items[i].matches(item.ProductID, item.VariantID) {
			merged := c.Items[i].Quantity + item.Quantity
			if merged > MaxQuantity {
				merged = MaxQuantity
			}
			c.Items[i].Quantity = merged
			c.Touch()
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.Touch()
	return nil
}

// RemoveItem deletes the line matching (productID, variantID) and reports
// whether a removal happened. Removing an absent line is a documented
// no-op and does not advance UpdatedAt.
func (c *Cart) RemoveItem(productID uuid.UUID, variantID string) bool {
	for i := range c.Items {
		if c.Items[i].matches(productID, variantID) {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.Touch()
			return true
		}
	}
	return false
}

// Clear empties the cart. It always advances UpdatedAt, even when the
// cart is already empty: any explicit user action refreshes the session.
func (c *Cart) Clear() {
	c.Items = c.Items[:0]
	c.Touch()
}

// Touch advances UpdatedAt and re-derives ExpiresAt = UpdatedAt + Ttl.
// UpdatedAt only moves forward, even against a coarse clock.
func (c *Cart) Touch() {
	now := time.Now().UTC()
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Nanosecond)
	}
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(c.Ttl)
}

// Expired reports whether the cart's ExpiresAt has passed. Every read
// must check this: expiry reaping is advisory background cleanup and an
// expired-but-unreaped cart is treated as absent.
func (c Cart) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Snapshot returns an immutable priced copy of the cart for the pricing
// engine and the checkout collaborator.
func (c Cart) Snapshot() pricing.Snapshot {
	items := make([]pricing.Line, len(c.Items))
	for i, item := range c.Items {
		items[i] = pricing.Line(item)
	}
	return pricing.Snapshot{UserID: c.UserID, Currency: c.Currency, Items: items}
}

func (c Cart) Total() decimal.Decimal {
	return pricing.Total(c.Snapshot())
}

// ItemCount is the total number of units in the cart, not the number of
// distinct lines.
func (c Cart) ItemCount() int {
	return pricing.UnitCount(c.Snapshot())
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
