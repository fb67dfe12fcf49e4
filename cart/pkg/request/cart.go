package request

import (
	"github.com/google/uuid"
)

// AddItem carries a "user requested add to cart" action from the webhook
// layer. The unit price is never taken from the request: the service
// freezes the catalog price at add time.
type AddItem struct {
	UserId     int64     `validate:"required"           json:"user_id"`
	ProductId  uuid.UUID `validate:"required"           json:"product_id"`
	VariantSku string    `validate:"omitempty,min=3,max=32" json:"variant_sku,omitempty"`
	Quantity   int       `validate:"required,gte=1,lte=99"  json:"quantity"`
}

type RemoveItem struct {
	UserId     int64     `validate:"required" json:"user_id"`
	ProductId  uuid.UUID `validate:"required" json:"product_id"`
	VariantSku string    `validate:"omitempty,min=3,max=32" json:"variant_sku,omitempty"`
}

type ClearCart struct {
	UserId int64 `validate:"required" json:"user_id"`
}

type Checkout struct {
	UserId int64 `validate:"required" json:"user_id"`
}
