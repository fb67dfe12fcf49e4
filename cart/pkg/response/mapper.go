package response

import (
	"github.com/Alturino/shopbot/cart/pkg/model"
	"github.com/Alturino/shopbot/cart/pkg/pricing"
)

func NewCart(cart model.Cart) Cart {
	items := make([]CartItem, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItem{
			ProductId:   item.ProductID,
			VariantSku:  item.VariantID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		}
	}
	return Cart{
		UserId:    cart.UserID,
		Currency:  cart.Currency,
		Items:     items,
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
		IsEmpty:   cart.IsEmpty(),
		UpdatedAt: cart.UpdatedAt,
		ExpiresAt: cart.ExpiresAt,
	}
}

func NewCheckoutSnapshot(snapshot pricing.Snapshot) CheckoutSnapshot {
	items := make([]CartItem, len(snapshot.Items))
	for i, line := range snapshot.Items {
		items[i] = CartItem{
			ProductId:   line.ProductID,
			VariantSku:  line.VariantID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    pricing.Subtotal(line),
		}
	}
	return CheckoutSnapshot{
		UserId:   snapshot.UserID,
		Currency: snapshot.Currency,
		Items:    items,
		Total:    pricing.Total(snapshot),
	}
}
