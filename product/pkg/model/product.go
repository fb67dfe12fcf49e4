// Package model holds the product catalog records: products, their
// purchasable variants, and the product status state machine.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/shopbot/internal/errors"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusOutOfStock Status = "out_of_stock"
)

const (
	MinSkuLen   = 3
	MaxSkuLen   = 32
	MaxVariants = 20
	MaxImages   = 10
)

// Variant is one purchasable SKU-level configuration of a product.
// Money is an integer count of minor currency units, never a float.
type Variant struct {
	Sku        string            `json:"sku"`
	Name       string            `json:"name"`
	PriceCents int64             `json:"price_cents"`
	Stock      int64             `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NormalizeSku trims and uppercases a SKU; uniqueness comparisons always
// run on the normalized form.
func NormalizeSku(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func NewVariant(
	sku string,
	name string,
	priceCents int64,
	stock int64,
	attributes map[string]string,
) (Variant, error) {
	sku = NormalizeSku(sku)
	if len(sku) < MinSkuLen || len(sku) > MaxSkuLen {
		return Variant{}, errors.NewValidationError(
			"sku",
			fmt.Sprintf("must be between %d and %d characters", MinSkuLen, MaxSkuLen),
		)
	}
	if name == "" {
		return Variant{}, errors.NewValidationError("name", "must not be empty")
	}
	if priceCents <= 0 {
		return Variant{}, errors.NewValidationError("price_cents", "must be positive")
	}
	if stock < 0 {
		return Variant{}, errors.NewValidationError("stock", "must not be negative")
	}
	return Variant{
		Sku:        sku,
		Name:       name,
		PriceCents: priceCents,
		Stock:      stock,
		Attributes: attributes,
	}, nil
}

// Price is the variant price in major currency units, derived from
// PriceCents and never stored.
func (v Variant) Price() decimal.Decimal {
	return decimal.New(v.PriceCents, -2)
}

// Image references a product photo by its bot-platform file id.
type Image struct {
	FileID  string `json:"file_id"`
	URL     string `json:"url,omitempty"`
	AltText string `json:"alt_text,omitempty"`
	Primary bool   `json:"is_primary,omitempty"`
}

type Product struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags,omitempty"`
	Variants    []Variant         `json:"variants"`
	Images      []Image           `json:"images,omitempty"`
	Status      Status            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewProduct validates the product shape and checks SKU uniqueness across
// variants. New products start in draft.
func NewProduct(
	name string,
	description string,
	category string,
	tags []string,
	variants []Variant,
	images []Image,
	metadata map[string]string,
) (Product, error) {
	if name == "" {
		return Product{}, errors.NewValidationError("name", "must not be empty")
	}
	if category == "" {
		return Product{}, errors.NewValidationError("category", "must not be empty")
	}
	if len(variants) > MaxVariants {
		return Product{}, errors.NewValidationError(
			"variants",
			fmt.Sprintf("must not exceed %d entries", MaxVariants),
		)
	}
	if len(images) > MaxImages {
		return Product{}, errors.NewValidationError(
			"images",
			fmt.Sprintf("must not exceed %d entries", MaxImages),
		)
	}
	seen := map[string]struct{}{}
	for _, v := range variants {
		if _, ok := seen[v.Sku]; ok {
			return Product{}, errors.NewValidationError(
				"variants",
				fmt.Sprintf("duplicate sku=%s", v.Sku),
			)
		}
		seen[v.Sku] = struct{}{}
	}
	now := time.Now().UTC()
	return Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		Tags:        tags,
		Variants:    variants,
		Images:      images,
		Status:      StatusDraft,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// DefaultVariant returns the first variant, the one a line item without
// an explicit variant resolves to.
func (p Product) DefaultVariant() (Variant, bool) {
	if len(p.Variants) == 0 {
		return Variant{}, false
	}
	return p.Variants[0], true
}

func (p Product) FindVariant(sku string) (Variant, bool) {
	sku = NormalizeSku(sku)
	for _, v := range p.Variants {
		if v.Sku == sku {
			return v, true
		}
	}
	return Variant{}, false
}

// MinPriceCents is the cheapest variant price, zero when the product has
// no variants. Derived, never stored.
func (p Product) MinPriceCents() int64 {
	if len(p.Variants) == 0 {
		return 0
	}
	min := p.Variants[0].PriceCents
	for _, v := range p.Variants[1:] {
		if v.PriceCents < min {
			min = v.PriceCents
		}
	}
	return min
}

// TotalStock sums stock across variants. Derived, never stored.
func (p Product) TotalStock() int64 {
	total := int64(0)
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}

// Available reports whether the product can be added to new carts.
func (p Product) Available() bool {
	return p.Status == StatusActive && p.TotalStock() > 0
}

// Promote moves a draft product to active. It requires at least one
// variant with stock, otherwise the promotion is rejected.
func (p *Product) Promote() error {
	if p.Status != StatusDraft {
		return errors.NewValidationError(
			"status",
			fmt.Sprintf("cannot promote product in status=%s", p.Status),
		)
	}
	stocked := false
	for _, v := range p.Variants {
		if v.Stock > 0 {
			stocked = true
			break
		}
	}
	if !stocked {
		return errors.NewValidationError("variants", "promotion requires a variant with stock")
	}
	p.Status = StatusActive
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Archive is the terminal manual transition. Existing cart snapshots stay
// valid because they hold frozen copies of name and price.
func (p *Product) Archive() error {
	if p.Status != StatusActive && p.Status != StatusOutOfStock {
		return errors.NewValidationError(
			"status",
			fmt.Sprintf("cannot archive product in status=%s", p.Status),
		)
	}
	p.Status = StatusArchived
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ReconcileStatus applies the automatic transitions after a stock change:
// active drops to out_of_stock when total stock reaches zero, and
// out_of_stock returns to active when any variant is restocked.
func (p *Product) ReconcileStatus() {
	switch {
	case p.Status == StatusActive && p.TotalStock() == 0:
		p.Status = StatusOutOfStock
		p.UpdatedAt = time.Now().UTC()
	case p.Status == StatusOutOfStock && p.TotalStock() > 0:
		p.Status = StatusActive
		p.UpdatedAt = time.Now().UTC()
	}
}
