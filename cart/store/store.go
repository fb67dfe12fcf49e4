// Package store is the persistence boundary for cart aggregates. It
// enforces one active cart per user, rejects stale writes, and treats
// expired-but-unreaped carts as absent on every read.
package store

import (
	"context"
	"time"

	"github.com/Alturino/shopbot/cart/pkg/model"
)

// Config carries the cart lifecycle settings threaded in from the
// application config; there is no ambient module-level state, so tests
// can vary the TTL freely.
type Config struct {
	Ttl      time.Duration
	Currency string
}

type Store interface {
	// LoadOrCreate returns the user's active cart, or a fresh unsaved
	// aggregate when none exists. A cart whose ExpiresAt has passed is
	// treated as absent even before the reaper has run.
	LoadOrCreate(c context.Context, userID int64) (model.Cart, error)

	// Load returns the user's active cart or errors.ErrNotFound.
	Load(c context.Context, userID int64) (model.Cart, error)

	// Save upserts the aggregate, refreshes its TTL, and bumps the
	// revision. It fails with errors.ErrStaleWrite when the stored
	// revision differs from the one the mutation was based on.
	Save(c context.Context, cart *model.Cart) error

	// Delete removes the user's cart. Deleting an absent cart is a no-op.
	Delete(c context.Context, userID int64) error

	// ReapExpired deletes every cart whose ExpiresAt has passed and
	// returns how many were removed. Expiry stays correct without it;
	// reaping is advisory cleanup.
	ReapExpired(c context.Context) (int, error)

	Close() error
}
