package store

import (
	"context"
	goerrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/product/pkg/model"
)

func seedProduct(t *testing.T, store *MemoryStore, stock int64) model.Product {
	t.Helper()
	variant, err := model.NewVariant("EARBUDS-BLACK", "Black", 4999, stock, nil)
	require.NoError(t, err)
	product, err := model.NewProduct("Wireless Earbuds Pro", "", "audio", nil, []model.Variant{variant}, nil, nil)
	require.NoError(t, err)
	if stock > 0 {
		require.NoError(t, product.Promote())
	}
	require.NoError(t, store.Insert(context.Background(), product))
	return product
}

func TestMemoryStoreInsertRejectsTakenSku(t *testing.T) {
	store := NewMemoryStore()
	seedProduct(t, store, 1)

	variant, err := model.NewVariant("earbuds-black", "Black", 100, 1, nil)
	require.NoError(t, err)
	other, err := model.NewProduct("Other", "", "audio", nil, []model.Variant{variant}, nil, nil)
	require.NoError(t, err)

	assert.True(t, errors.IsValidation(store.Insert(context.Background(), other)))
}

func TestMemoryStoreFindBySkuNormalizes(t *testing.T) {
	store := NewMemoryStore()
	seed := seedProduct(t, store, 1)

	found, err := store.FindBySku(context.Background(), "  earbuds-black ")
	require.NoError(t, err)
	assert.Equal(t, seed.ID, found.ID)

	_, err = store.FindBySku(context.Background(), "missing-sku")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryStoreFindByIdReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	seed := seedProduct(t, store, 5)

	found, err := store.FindById(context.Background(), seed.ID)
	require.NoError(t, err)
	found.Variants[0].Stock = 0

	again, err := store.FindById(context.Background(), seed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, again.Variants[0].Stock)
}

func TestMemoryStoreReserveStock(t *testing.T) {
	c := context.Background()

	t.Run("given enough stock should decrement", func(t *testing.T) {
		store := NewMemoryStore()
		seed := seedProduct(t, store, 5)

		require.NoError(t, store.ReserveStock(c, "EARBUDS-BLACK", 3))

		product, err := store.FindById(c, seed.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, product.TotalStock())
		assert.Equal(t, model.StatusActive, product.Status)
	})
	t.Run("given insufficient stock should reject without mutating", func(t *testing.T) {
		store := NewMemoryStore()
		seed := seedProduct(t, store, 2)

		err := store.ReserveStock(c, "EARBUDS-BLACK", 3)
		assert.ErrorIs(t, err, errors.ErrInsufficientStock)

		product, err := store.FindById(c, seed.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, product.TotalStock())
	})
	t.Run("given reserve drains stock should go out_of_stock", func(t *testing.T) {
		store := NewMemoryStore()
		seed := seedProduct(t, store, 2)

		require.NoError(t, store.ReserveStock(c, "EARBUDS-BLACK", 2))

		product, err := store.FindById(c, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusOutOfStock, product.Status)
		assert.False(t, product.Available())
	})
	t.Run("given unknown sku should return not found", func(t *testing.T) {
		store := NewMemoryStore()
		seedProduct(t, store, 2)

		assert.ErrorIs(t, store.ReserveStock(c, "missing-sku", 1), errors.ErrNotFound)
	})
	t.Run("given non positive quantity should reject", func(t *testing.T) {
		store := NewMemoryStore()
		seedProduct(t, store, 2)

		assert.True(t, errors.IsValidation(store.ReserveStock(c, "EARBUDS-BLACK", 0)))
		assert.True(t, errors.IsValidation(store.ReserveStock(c, "EARBUDS-BLACK", -1)))
	})
}

func TestMemoryStoreReleaseStockRestoresAvailability(t *testing.T) {
	c := context.Background()
	store := NewMemoryStore()
	seed := seedProduct(t, store, 1)

	require.NoError(t, store.ReserveStock(c, "EARBUDS-BLACK", 1))
	require.NoError(t, store.ReleaseStock(c, "EARBUDS-BLACK", 1))

	product, err := store.FindById(c, seed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, product.TotalStock())
	assert.Equal(t, model.StatusActive, product.Status)
}

func TestMemoryStoreConcurrentReserveNeverOversells(t *testing.T) {
	c := context.Background()
	store := NewMemoryStore()
	seed := seedProduct(t, store, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.ReserveStock(c, "EARBUDS-BLACK", 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case goerrors.Is(err, errors.ErrInsufficientStock):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	product, err := store.FindById(c, seed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, product.TotalStock())
}

func TestMemoryStoreUpdateAndDelete(t *testing.T) {
	c := context.Background()
	store := NewMemoryStore()
	seed := seedProduct(t, store, 2)

	renamed, err := store.FindById(c, seed.ID)
	require.NoError(t, err)
	renamed.Name = "Wireless Earbuds Pro 2"
	require.NoError(t, store.Update(c, renamed))

	found, err := store.FindById(c, seed.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wireless Earbuds Pro 2", found.Name)

	require.NoError(t, store.Delete(c, seed.ID))
	_, err = store.FindById(c, seed.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = store.FindBySku(c, "EARBUDS-BLACK")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	unknown, err := model.NewProduct("Ghost", "", "audio", nil, nil, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Update(c, unknown), errors.ErrNotFound)
	assert.ErrorIs(t, store.Delete(c, uuid.New()), errors.ErrNotFound)
}
