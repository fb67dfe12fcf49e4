// Package store is the persistence boundary for the product catalog. It
// owns the stock invariant: a reservation that would drive stock negative
// is rejected atomically, never clamped.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/Alturino/shopbot/product/pkg/model"
)

type Store interface {
	Insert(c context.Context, product model.Product) error
	Update(c context.Context, product model.Product) error
	FindById(c context.Context, id uuid.UUID) (model.Product, error)
	FindBySku(c context.Context, sku string) (model.Product, error)
	FindAll(c context.Context) ([]model.Product, error)
	Delete(c context.Context, id uuid.UUID) error

	// ReserveStock atomically decrements the variant's stock when
	// stock >= quantity, otherwise fails with errors.ErrInsufficientStock.
	// Two concurrent reservations against the last unit must resolve to
	// exactly one success. Automatic status transitions are applied.
	ReserveStock(c context.Context, sku string, quantity int64) error

	// ReleaseStock returns previously reserved units, used when a
	// checkout fails partway. Automatic status transitions are applied.
	ReleaseStock(c context.Context, sku string, quantity int64) error

	Close() error
}
