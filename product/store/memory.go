package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/metric"
	"github.com/Alturino/shopbot/product/pkg/model"
)

// MemoryStore keeps the catalog in process memory behind a single mutex,
// which makes every reserve a serialized read-check-write.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]model.Product
	bySku    map[string]uuid.UUID
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[uuid.UUID]model.Product{},
		bySku:    map[string]uuid.UUID{},
	}
}

func (s *MemoryStore) Insert(_ context.Context, product model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range product.Variants {
		if owner, ok := s.bySku[v.Sku]; ok && owner != product.ID {
			return errors.NewValidationError("sku", "sku="+v.Sku+" is already taken")
		}
	}
	s.put(product)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, product model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.products[product.ID]
	if !ok {
		return errors.ErrNotFound
	}
	for _, v := range product.Variants {
		if owner, ok := s.bySku[v.Sku]; ok && owner != product.ID {
			return errors.NewValidationError("sku", "sku="+v.Sku+" is already taken")
		}
	}
	for _, v := range stored.Variants {
		delete(s.bySku, v.Sku)
	}
	s.put(product)
	return nil
}

func (s *MemoryStore) FindById(_ context.Context, id uuid.UUID) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return model.Product{}, errors.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (s *MemoryStore) FindBySku(_ context.Context, sku string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySku[model.NormalizeSku(sku)]
	if !ok {
		return model.Product{}, errors.ErrNotFound
	}
	return cloneProduct(s.products[id]), nil
}

func (s *MemoryStore) FindAll(_ context.Context) ([]model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}
	return products, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[id]
	if !ok {
		return errors.ErrNotFound
	}
	for _, v := range product.Variants {
		delete(s.bySku, v.Sku)
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) ReserveStock(_ context.Context, sku string, quantity int64) error {
	if quantity <= 0 {
		return errors.NewValidationError("quantity", "must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStock(sku, -quantity)
}

func (s *MemoryStore) ReleaseStock(_ context.Context, sku string, quantity int64) error {
	if quantity <= 0 {
		return errors.NewValidationError("quantity", "must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStock(sku, quantity)
}

func (s *MemoryStore) Close() error {
	return nil
}

// adjustStock mutates a single variant's stock under the store lock and
// re-derives the product status.
func (s *MemoryStore) adjustStock(sku string, delta int64) error {
	sku = model.NormalizeSku(sku)
	id, ok := s.bySku[sku]
	if !ok {
		return errors.ErrNotFound
	}
	product := s.products[id]
	for i := range product.Variants {
		if product.Variants[i].Sku != sku {
			continue
		}
		next := product.Variants[i].Stock + delta
		if next < 0 {
			metric.ReservationConflicts.Inc()
			return errors.ErrInsufficientStock
		}
		product.Variants[i].Stock = next
		product.ReconcileStatus()
		product.UpdatedAt = time.Now().UTC()
		s.products[id] = product
		return nil
	}
	return errors.ErrNotFound
}

func (s *MemoryStore) put(product model.Product) {
	s.products[product.ID] = cloneProduct(product)
	for _, v := range product.Variants {
		s.bySku[v.Sku] = product.ID
	}
}

func cloneProduct(product model.Product) model.Product {
	variants := make([]model.Variant, len(product.Variants))
	copy(variants, product.Variants)
	product.Variants = variants
	images := make([]model.Image, len(product.Images))
	copy(images, product.Images)
	product.Images = images
	return product
}
