package store

import (
	"context"
	"sync"
	"time"

	"github.com/Alturino/shopbot/cart/pkg/model"
	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/metric"
)

// MemoryStore keeps cart aggregates in process memory. Uniqueness per
// user falls out of the map key. Writers for different users only share
// the map lock for the duration of a copy; serialization of writers for
// the same user relies on the revision check in Save.
type MemoryStore struct {
	mu     sync.RWMutex
	carts  map[int64]model.Cart
	config Config
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(config Config) *MemoryStore {
	return &MemoryStore{carts: map[int64]model.Cart{}, config: config}
}

func (s *MemoryStore) LoadOrCreate(c context.Context, userID int64) (model.Cart, error) {
	if cart, err := s.Load(c, userID); err == nil {
		return cart, nil
	}
	return model.NewCart(userID, s.config.Currency, s.config.Ttl)
}

func (s *MemoryStore) Load(_ context.Context, userID int64) (model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[userID]
	if !ok || cart.Expired(time.Now().UTC()) {
		return model.Cart{}, errors.ErrNotFound
	}
	return cloneCart(cart), nil
}

func (s *MemoryStore) Save(_ context.Context, cart *model.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.carts[cart.UserID]
	if ok && !stored.Expired(time.Now().UTC()) && stored.Revision != cart.Revision {
		metric.StaleWrites.Inc()
		return errors.ErrStaleWrite
	}
	cart.Revision++
	s.carts[cart.UserID] = cloneCart(*cart)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *MemoryStore) ReapExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	reaped := 0
	for userID, cart := range s.carts {
		if cart.Expired(now) {
			delete(s.carts, userID)
			reaped++
		}
	}
	if reaped > 0 {
		metric.ReapedCarts.Add(float64(reaped))
	}
	return reaped, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// cloneCart copies the aggregate so callers never alias stored state.
func cloneCart(cart model.Cart) model.Cart {
	items := make([]model.LineItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return cart
}
