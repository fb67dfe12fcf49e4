package response

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ProductId   uuid.UUID       `json:"product_id"`
	VariantSku  string          `json:"variant_sku,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	UserId    int64           `json:"user_id"`
	Currency  string          `json:"currency"`
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	IsEmpty   bool            `json:"is_empty"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CheckoutSnapshot is the read-only view handed to the payment
// collaborator when a checkout is initiated.
type CheckoutSnapshot struct {
	UserId   int64           `json:"user_id"`
	Currency string          `json:"currency"`
	Items    []CartItem      `json:"items"`
	Total    decimal.Decimal `json:"total"`
}
