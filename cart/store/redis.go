package store

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Alturino/shopbot/cart/pkg/model"
	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/log"
	"github.com/Alturino/shopbot/internal/metric"
)

const (
	keyCartsPrefix = "carts:"
	keyCarts       = keyCartsPrefix + "%d"

	// opTimeout bounds every redis call so a slow backend surfaces a
	// retryable error instead of hanging a request handler.
	opTimeout = 3 * time.Second
)

// RedisStore persists cart aggregates as JSON values keyed by user id,
// with the key TTL mirroring the aggregate's ExpiresAt so Redis performs
// the reaping. Stale writes are rejected with an optimistic WATCH
// transaction on the cart key.
type RedisStore struct {
	client *redis.Client
	config Config
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, config Config) *RedisStore {
	return &RedisStore{client: client, config: config}
}

func (s *RedisStore) LoadOrCreate(c context.Context, userID int64) (model.Cart, error) {
	cart, err := s.Load(c, userID)
	if err == nil {
		return cart, nil
	}
	if !goerrors.Is(err, errors.ErrNotFound) {
		return model.Cart{}, err
	}
	return model.NewCart(userID, s.config.Currency, s.config.Ttl)
}

func (s *RedisStore) Load(c context.Context, userID int64) (model.Cart, error) {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	payload, err := s.client.Get(c, fmt.Sprintf(keyCarts, userID)).Result()
	if goerrors.Is(err, redis.Nil) {
		return model.Cart{}, errors.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("failed loading cart for userId=%d with error=%w", userID, err)
	}

	cart := model.Cart{}
	if err := json.Unmarshal([]byte(payload), &cart); err != nil {
		return model.Cart{}, fmt.Errorf("failed unmarshaling cart for userId=%d with error=%w", userID, err)
	}
	// The key TTL should have removed an expired cart already, but expiry
	// is advisory: re-check on every read.
	if cart.Expired(time.Now().UTC()) {
		return model.Cart{}, errors.ErrNotFound
	}
	return cart, nil
}

func (s *RedisStore) Save(c context.Context, cart *model.Cart) error {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	key := fmt.Sprintf(keyCarts, cart.UserID)
	err := s.client.Watch(c, func(tx *redis.Tx) error {
		payload, err := tx.Get(c, key).Result()
		if err != nil && !goerrors.Is(err, redis.Nil) {
			return fmt.Errorf("failed reading stored cart with error=%w", err)
		}
		if err == nil {
			stored := model.Cart{}
			if err := json.Unmarshal([]byte(payload), &stored); err != nil {
				return fmt.Errorf("failed unmarshaling stored cart with error=%w", err)
			}
			if !stored.Expired(time.Now().UTC()) && stored.Revision != cart.Revision {
				return errors.ErrStaleWrite
			}
		}

		next := *cart
		next.Revision++
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed marshaling cart with error=%w", err)
		}
		ttl := time.Until(next.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		_, err = tx.TxPipelined(c, func(pipe redis.Pipeliner) error {
			pipe.Set(c, key, encoded, ttl)
			return nil
		})
		return err
	}, key)
	if goerrors.Is(err, redis.TxFailedErr) {
		// The key changed between WATCH and EXEC: a concurrent writer won.
		err = errors.ErrStaleWrite
	}
	if goerrors.Is(err, errors.ErrStaleWrite) {
		metric.StaleWrites.Inc()
		return err
	}
	if err != nil {
		return fmt.Errorf("failed saving cart for userId=%d with error=%w", cart.UserID, err)
	}
	cart.Revision++
	return nil
}

func (s *RedisStore) Delete(c context.Context, userID int64) error {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()
	if err := s.client.Del(c, fmt.Sprintf(keyCarts, userID)).Err(); err != nil {
		return fmt.Errorf("failed deleting cart for userId=%d with error=%w", userID, err)
	}
	return nil
}

// ReapExpired scans cart keys and deletes any whose stored ExpiresAt has
// passed. Redis key expiry already covers the common case; the scan
// covers carts written with a drifted TTL.
func (s *RedisStore) ReapExpired(c context.Context) (int, error) {
	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "RedisStore ReapExpired").
		Logger()

	now := time.Now().UTC()
	reaped := 0
	iter := s.client.Scan(c, 0, keyCartsPrefix+"*", 100).Iterator()
	for iter.Next(c) {
		key := iter.Val()
		payload, err := s.client.Get(c, key).Result()
		if goerrors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return reaped, fmt.Errorf("failed reading key=%s with error=%w", key, err)
		}
		cart := model.Cart{}
		if err := json.Unmarshal([]byte(payload), &cart); err != nil {
			logger.Error().Err(err).Msgf("skipping unreadable cart at key=%s", key)
			continue
		}
		if !cart.Expired(now) {
			continue
		}
		if err := s.client.Del(c, key).Err(); err != nil {
			return reaped, fmt.Errorf("failed deleting key=%s with error=%w", key, err)
		}
		reaped++
	}
	if err := iter.Err(); err != nil {
		return reaped, fmt.Errorf("failed scanning cart keys with error=%w", err)
	}
	if reaped > 0 {
		metric.ReapedCarts.Add(float64(reaped))
	}
	return reaped, nil
}

func (s *RedisStore) Close() error {
	return nil
}
