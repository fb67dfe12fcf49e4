package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alturino/shopbot/internal/errors"
)

func newTestCart(t *testing.T) Cart {
	t.Helper()
	cart, err := NewCart(123456789, "EUR", 72*time.Hour)
	require.NoError(t, err)
	return cart
}

func newTestItem(t *testing.T, productID uuid.UUID, variant string, quantity int, price string) LineItem {
	t.Helper()
	item, err := NewLineItem(
		productID,
		variant,
		"Wireless Earbuds Pro",
		quantity,
		decimal.RequireFromString(price),
	)
	require.NoError(t, err)
	return item
}

func TestNewCart(t *testing.T) {
	tests := []struct {
		name     string
		userID   int64
		currency string
		ttl      time.Duration
		wantErr  bool
	}{
		{
			name:     "given valid input should create empty cart",
			userID:   1,
			currency: "EUR",
			ttl:      time.Hour,
		},
		{
			name:     "given zero user id should fail",
			currency: "EUR",
			ttl:      time.Hour,
			wantErr:  true,
		},
		{
			name:     "given lowercase currency should fail",
			userID:   1,
			currency: "eur",
			ttl:      time.Hour,
			wantErr:  true,
		},
		{
			name:     "given non positive ttl should fail",
			userID:   1,
			currency: "EUR",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart, err := NewCart(tt.userID, tt.currency, tt.ttl)
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, cart.IsEmpty())
			assert.Equal(t, 0, cart.ItemCount())
			assert.Equal(t, cart.UpdatedAt.Add(tt.ttl), cart.ExpiresAt)
		})
	}
}

func TestNewLineItemBounds(t *testing.T) {
	productID := uuid.New()
	price := decimal.RequireFromString("49.99")

	tests := []struct {
		name     string
		quantity int
		price    decimal.Decimal
		wantErr  bool
	}{
		{name: "given quantity 1 should pass", quantity: 1, price: price},
		{name: "given quantity 99 should pass", quantity: 99, price: price},
		{name: "given quantity 0 should fail", quantity: 0, price: price, wantErr: true},
		{name: "given quantity 100 should fail", quantity: 100, price: price, wantErr: true},
		{name: "given negative price should fail", quantity: 1, price: decimal.RequireFromString("-0.01"), wantErr: true},
		{name: "given zero price should pass", quantity: 1, price: decimal.Zero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(productID, "", "name", tt.quantity, tt.price)
			if tt.wantErr {
				assert.True(t, errors.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAddItemMergesOnSameKey(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 2, "49.99")))
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 5, "49.99")))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, "349.93", cart.Total().StringFixed(2))
}

func TestAddItemClampsMergedQuantity(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 60, "1")))
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 60, "1")))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, MaxQuantity, cart.Items[0].Quantity)
}

func TestAddItemVariantIsDistinctKey(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 1, "10")))
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "SKU-BLACK", 1, "10")))
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "SKU-WHITE", 1, "10")))

	assert.Len(t, cart.Items, 3)
}

func TestAddItemKeepsFrozenPriceOnMerge(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 1, "49.99")))
	// Simulates a catalog repricing between the two adds: the line keeps
	// the price frozen at first add.
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 1, "59.99")))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "49.99", cart.Items[0].UnitPrice.String())
	assert.Equal(t, "99.98", cart.Total().StringFixed(2))
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()
	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 2, "49.99")))
	updatedAfterAdd := cart.UpdatedAt

	assert.True(t, cart.RemoveItem(productID, ""))
	assert.True(t, cart.IsEmpty())
	updatedAfterRemove := cart.UpdatedAt
	assert.True(t, updatedAfterRemove.After(updatedAfterAdd))

	assert.False(t, cart.RemoveItem(productID, ""))
	assert.Equal(t, updatedAfterRemove, cart.UpdatedAt)
}

func TestClearAlwaysTouches(t *testing.T) {
	cart := newTestCart(t)
	require.NoError(t, cart.AddItem(newTestItem(t, uuid.New(), "", 3, "5")))

	before := cart.UpdatedAt
	cart.Clear()
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, cart.ItemCount())
	assert.True(t, cart.UpdatedAt.After(before))

	before = cart.UpdatedAt
	cart.Clear()
	assert.True(t, cart.UpdatedAt.After(before), "clearing an empty cart still refreshes the session")
}

func TestTouchRederivesExpiry(t *testing.T) {
	cart, err := NewCart(1, "EUR", time.Hour)
	require.NoError(t, err)

	before := cart.UpdatedAt
	cart.Touch()
	assert.True(t, cart.UpdatedAt.After(before))
	assert.Equal(t, cart.UpdatedAt.Add(time.Hour), cart.ExpiresAt)
}

func TestExpired(t *testing.T) {
	cart, err := NewCart(1, "EUR", time.Hour)
	require.NoError(t, err)

	assert.False(t, cart.Expired(time.Now().UTC()))
	assert.True(t, cart.Expired(cart.ExpiresAt))
	assert.True(t, cart.Expired(cart.ExpiresAt.Add(time.Minute)))
}

func TestAddMergeRemoveLifecycle(t *testing.T) {
	cart := newTestCart(t)
	productID := uuid.New()

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 2, "49.99")))
	assert.Equal(t, "99.98", cart.Total().StringFixed(2))
	assert.Equal(t, 2, cart.ItemCount())

	require.NoError(t, cart.AddItem(newTestItem(t, productID, "", 5, "49.99")))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, "349.93", cart.Total().StringFixed(2))

	assert.True(t, cart.RemoveItem(productID, ""))
	assert.True(t, cart.IsEmpty())
}

func TestSnapshotIsACopy(t *testing.T) {
	cart := newTestCart(t)
	require.NoError(t, cart.AddItem(newTestItem(t, uuid.New(), "", 1, "10")))

	snapshot := cart.Snapshot()
	snapshot.Items[0].Quantity = 50

	assert.Equal(t, 1, cart.Items[0].Quantity)
}
