package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testRedis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Alturino/shopbot/cart/pkg/model"
	"github.com/Alturino/shopbot/internal/errors"
)

func setupRedisStore(t *testing.T, c context.Context) (*redis.Client, *RedisStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	redisContainer, err := testRedis.Run(c, "redis:7.4.2-alpine3.21")
	if err != nil {
		t.Fatalf("failed running redis container with error: %s", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	redisConnStr, err := redisContainer.ConnectionString(c)
	if err != nil {
		t.Fatalf("failed getting redis connection string with error: %s", err)
	}
	redisOpt, err := redis.ParseURL(redisConnStr)
	if err != nil {
		t.Fatalf("failed parsing redis connection string with error: %s", err)
	}
	client := redis.NewClient(redisOpt)
	if err = client.Ping(c).Err(); err != nil {
		t.Fatalf("failed ping redis client with error: %s", err)
	}
	t.Cleanup(func() { client.Close() })

	return client, NewRedisStore(client, Config{Ttl: 72 * time.Hour, Currency: "EUR"})
}

func redisTestItem(t *testing.T, quantity int) model.LineItem {
	t.Helper()
	item, err := model.NewLineItem(
		uuid.New(),
		"EARBUDS-BLACK",
		"Wireless Earbuds Pro",
		quantity,
		decimal.RequireFromString("49.99"),
	)
	require.NoError(t, err)
	return item
}

func TestRedisStoreRoundTrip(t *testing.T) {
	c := context.Background()
	_, store := setupRedisStore(t, c)

	cart, err := store.LoadOrCreate(c, 42)
	require.NoError(t, err)
	require.NoError(t, cart.AddItem(redisTestItem(t, 2)))
	require.NoError(t, store.Save(c, &cart))

	loaded, err := store.Load(c, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, loaded.UserID)
	assert.Equal(t, "EUR", loaded.Currency)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "99.98", loaded.Total().String())
	assert.Equal(t, cart.Revision, loaded.Revision)

	_, err = store.Load(c, 43)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRedisStoreRejectsStaleWrite(t *testing.T) {
	c := context.Background()
	_, store := setupRedisStore(t, c)

	base, err := store.LoadOrCreate(c, 42)
	require.NoError(t, err)
	require.NoError(t, store.Save(c, &base))

	first, err := store.Load(c, 42)
	require.NoError(t, err)
	second, err := store.Load(c, 42)
	require.NoError(t, err)

	require.NoError(t, first.AddItem(redisTestItem(t, 1)))
	require.NoError(t, store.Save(c, &first))

	require.NoError(t, second.AddItem(redisTestItem(t, 5)))
	assert.ErrorIs(t, store.Save(c, &second), errors.ErrStaleWrite)

	loaded, err := store.Load(c, 42)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 1, loaded.Items[0].Quantity, "the losing write must not leak through")
}

func TestRedisStoreDelete(t *testing.T) {
	c := context.Background()
	_, store := setupRedisStore(t, c)

	cart, err := store.LoadOrCreate(c, 42)
	require.NoError(t, err)
	require.NoError(t, store.Save(c, &cart))

	require.NoError(t, store.Delete(c, 42))
	_, err = store.Load(c, 42)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Deleting an absent cart is not an error.
	require.NoError(t, store.Delete(c, 42))
}

func TestRedisStoreExpiredCartReadsAsAbsent(t *testing.T) {
	c := context.Background()
	_, store := setupRedisStore(t, c)

	short := NewRedisStore(store.client, Config{Ttl: 100 * time.Millisecond, Currency: "EUR"})
	cart, err := short.LoadOrCreate(c, 42)
	require.NoError(t, err)
	require.NoError(t, short.Save(c, &cart))

	time.Sleep(200 * time.Millisecond)

	_, err = short.Load(c, 42)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRedisStoreReapExpired(t *testing.T) {
	c := context.Background()
	client, store := setupRedisStore(t, c)

	live, err := store.LoadOrCreate(c, 1)
	require.NoError(t, err)
	require.NoError(t, store.Save(c, &live))

	// A cart whose key TTL drifted from its ExpiresAt: the payload says
	// expired but Redis never dropped the key.
	drifted, err := model.NewCart(2, "EUR", time.Hour)
	require.NoError(t, err)
	drifted.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	encoded, err := json.Marshal(drifted)
	require.NoError(t, err)
	require.NoError(t, client.Set(c, fmt.Sprintf(keyCarts, drifted.UserID), encoded, 0).Err())

	reaped, err := store.ReapExpired(c)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	_, err = store.Load(c, 1)
	assert.NoError(t, err, "live carts survive the reap")
	_, err = store.Load(c, 2)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
