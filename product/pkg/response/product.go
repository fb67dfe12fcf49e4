package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alturino/shopbot/product/pkg/model"
)

type Variant struct {
	Sku        string            `json:"sku"`
	Name       string            `json:"name"`
	PriceCents int64             `json:"price_cents"`
	Price      decimal.Decimal   `json:"price"`
	Stock      int64             `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Product struct {
	Id          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags,omitempty"`
	Variants    []Variant         `json:"variants"`
	Images      []model.Image     `json:"images,omitempty"`
	Status      model.Status      `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	MinPrice    decimal.Decimal   `json:"min_price"`
	TotalStock  int64             `json:"total_stock"`
	Available   bool              `json:"available"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func NewProduct(product model.Product) Product {
	variants := make([]Variant, len(product.Variants))
	for i, v := range product.Variants {
		variants[i] = Variant{
			Sku:        v.Sku,
			Name:       v.Name,
			PriceCents: v.PriceCents,
			Price:      v.Price(),
			Stock:      v.Stock,
			Attributes: v.Attributes,
		}
	}
	return Product{
		Id:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Tags:        product.Tags,
		Variants:    variants,
		Images:      product.Images,
		Status:      product.Status,
		Metadata:    product.Metadata,
		MinPrice:    decimal.New(product.MinPriceCents(), -2),
		TotalStock:  product.TotalStock(),
		Available:   product.Available(),
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}
