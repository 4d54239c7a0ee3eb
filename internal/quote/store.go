// Package quote holds the priced product/material/labor aggregate for a
// project. The quote is fetched, never maintained as a running total.
package quote

import (
	"context"
	"sync"

	"renomarket.org/internal/audit"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/obs"
)

// key identifies one fetch: the project plus the product selection
// counter. A new counter value means the selection changed and the quote
// must be refetched even though the project did not move.
type key struct {
	projectID string
	change    uint64
}

// Store caches the last fetched quote.
type Store struct {
	mu     sync.RWMutex
	api    *gateway.Client
	quote  gateway.Quote
	loaded bool
	last   key
	gen    uint64
}

func New(api *gateway.Client) *Store {
	return &Store{api: api}
}

// Sync refetches when the (project id, change counter) pair differs from
// the last applied fetch; otherwise it is a no-op. Exactly one fetch per
// distinct pair.
func (s *Store) Sync(ctx context.Context, projectID string, change uint64) {
	if projectID == "" {
		return
	}
	k := key{projectID: projectID, change: change}

	s.mu.Lock()
	if s.loaded && k == s.last {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	q, err := s.api.Quote(ctx, projectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return // superseded
	}
	if err != nil {
		obs.Error("quote fetch failed", err, map[string]any{"project_id": projectID})
		return
	}
	s.quote = q
	s.loaded = true
	s.last = k
}

// Quote returns the last fetched quote and whether one is loaded.
func (s *Store) Quote() (gateway.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quote, s.loaded
}

// AddProduct persists an addition to the server-side quote, then forces a
// refetch on the next Sync by clearing the loaded flag. No local total is
// adjusted.
func (s *Store) AddProduct(ctx context.Context, projectID, productID string, quantity int) error {
	if err := s.api.AddQuoteProduct(ctx, projectID, productID, quantity); err != nil {
		return err
	}
	audit.LogEvent(ctx, "quote.product.add", map[string]any{"projectId": projectID, "productId": productID})
	s.invalidate()
	return nil
}

// RemoveProduct mirrors AddProduct for removals.
func (s *Store) RemoveProduct(ctx context.Context, projectID, productID string) error {
	if err := s.api.RemoveQuoteProduct(ctx, projectID, productID); err != nil {
		return err
	}
	audit.LogEvent(ctx, "quote.product.remove", map[string]any{"projectId": projectID, "productId": productID})
	s.invalidate()
	return nil
}

func (s *Store) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Total recomputes the displayed total from the fetched arrays. It is a
// pure function of the last fetch: product and material line sums plus
// labor, in minor units. There is no incrementally mutated counterpart
// that could drift.
func Total(q gateway.Quote) int64 {
	var total int64
	for _, p := range q.Products {
		total += p.Price * int64(p.Quantity)
	}
	for _, m := range q.Materials {
		total += m.Price * int64(m.Quantity)
	}
	return total + q.TotalLaborCost
}
