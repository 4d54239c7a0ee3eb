// Package product maintains the catalog and the "added to this project"
// selection set.
package product

import (
	"context"
	"sync"

	"renomarket.org/internal/audit"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/obs"
)

// ChangeFunc receives the selection change counter after every toggle,
// under the toggling caller's context.
type ChangeFunc func(ctx context.Context, seq uint64)

// Store holds catalog products and the selection set. Every toggle bumps a
// monotonically increasing counter delivered to the registered callback.
// The signal is a counter, not a flag: two rapid toggles that return the
// set to its prior state must still produce two distinct observable
// events, or a consumer keying a refetch on the value would miss the second.
type Store struct {
	mu       sync.RWMutex
	api      *gateway.Client
	products []gateway.Product
	selected map[string]struct{}
	seq      uint64
	onChange ChangeFunc
	loaded   bool
	gen      uint64
}

func New(api *gateway.Client) *Store {
	return &Store{api: api, selected: make(map[string]struct{})}
}

// OnChange registers the change-notification callback. One consumer (the
// quote store) is enough for the dashboard; last registration wins.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load fetches the catalog, optionally filtered by category. The selection
// set survives a reload.
func (s *Store) Load(ctx context.Context, category string) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	products, err := s.api.Products(ctx, category)
	if err != nil {
		obs.Error("catalog fetch failed", err, map[string]any{"category": category})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return // superseded
	}
	s.products = products
	s.loaded = true
}

// Toggle flips the product's membership in the selection set and notifies
// the registered callback with the new counter value. Toggling twice
// returns membership to its prior state; the counter still advances by one
// per call.
func (s *Store) Toggle(ctx context.Context, productID string) uint64 {
	s.mu.Lock()
	if _, ok := s.selected[productID]; ok {
		delete(s.selected, productID)
	} else {
		s.selected[productID] = struct{}{}
	}
	s.seq++
	seq := s.seq
	notify := s.onChange
	s.mu.Unlock()

	audit.LogEvent(ctx, "product.toggle", map[string]any{"productId": productID, "seq": seq})
	if notify != nil {
		notify(ctx, seq)
	}
	return seq
}

// Selected reports membership in the selection set.
func (s *Store) Selected(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[productID]
	return ok
}

// SelectedIDs returns the current selection.
func (s *Store) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	return out
}

// Loaded reports whether at least one catalog fetch has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// ChangeCount returns the current value of the change counter.
func (s *Store) ChangeCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Products returns a copy of the cached catalog.
func (s *Store) Products() []gateway.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gateway.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Patch carries a partial product update; nil fields are left untouched.
type Patch struct {
	Name     *string
	Brand    *string
	Price    *int64
	Quantity *int
}

// Update merges fields into the cached product. No server round-trip
// happens here; callers persist separately.
func (s *Store) Update(productID string, patch Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != productID {
			continue
		}
		p := &s.products[i]
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Brand != nil {
			p.Brand = *patch.Brand
		}
		if patch.Price != nil {
			p.Price = *patch.Price
		}
		if patch.Quantity != nil {
			p.Quantity = *patch.Quantity
		}
		return true
	}
	return false
}
