// Package project holds the active project's identity and metadata.
// Task, product, and quote stores key their fetches off the id resolved here.
package project

import (
	"context"
	"errors"
	"strings"
	"sync"

	"renomarket.org/internal/gateway"
	"renomarket.org/internal/localstore"
	"renomarket.org/internal/obs"
)

// Store resolves and caches the current project. Construct one per signed-in
// dashboard; it is not an ambient singleton.
type Store struct {
	mu    sync.RWMutex
	api   *gateway.Client
	state *localstore.Store

	projectID string
	current   gateway.Project
	loaded    bool
	missing   bool
	gen       uint64
}

// New builds a store over the gateway and the client's persisted state.
func New(api *gateway.Client, state *localstore.Store) *Store {
	return &Store{api: api, state: state}
}

// Resolve determines the active project id: an explicit id from navigation
// wins, then the cached id from a previous run, then the latest-project
// lookup. When nothing resolves, the Missing flag is set and the consumer
// renders an empty state instead of a dashboard.
//
// Once an id is known the project detail is fetched exactly once; calling
// Resolve again with the same outcome does not refetch.
func (s *Store) Resolve(ctx context.Context, explicitID string) {
	id := strings.TrimSpace(explicitID)
	if id == "" {
		if cached, err := s.state.Get(localstore.KeyProjectID); err == nil {
			id = cached
		}
	}
	if id == "" {
		ref, err := s.api.LatestProject(ctx)
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			s.mu.Lock()
			s.missing = true
			s.mu.Unlock()
			return
		case err != nil:
			obs.Error("latest project lookup failed", err, nil)
			return
		}
		id = ref.ID
	}
	s.SetProjectID(ctx, id)
}

// SetProjectID switches the active project. A changed id triggers exactly
// one refetch; an unchanged id is a no-op.
func (s *Store) SetProjectID(ctx context.Context, id string) {
	s.mu.Lock()
	if id == s.projectID && s.loaded {
		s.mu.Unlock()
		return
	}
	s.projectID = id
	s.missing = false
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.state.Set(localstore.KeyProjectID, id); err != nil {
		obs.Error("project id cache failed", err, nil)
	}
	s.fetch(ctx, id, gen)
}

// Refresh refetches the current project, e.g. after a status transition.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	id := s.projectID
	if id == "" {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.fetch(ctx, id, gen)
}

func (s *Store) fetch(ctx context.Context, id string, gen uint64) {
	p, err := s.api.Project(ctx, id)
	if err != nil {
		obs.Error("project fetch failed", err, map[string]any{"project_id": id})
		return
	}
	s.fetchApply(p, gen)
}

// fetchApply installs a response only if no newer fetch has started since;
// a slow response for a stale id never overwrites fresher state.
func (s *Store) fetchApply(p gateway.Project, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return // superseded
	}
	s.current = p
	s.loaded = true
}

// Transition asks the server to advance the project (active / rejected with
// an optional message), then refetches. The local copy is only a cache of
// server truth.
func (s *Store) Transition(ctx context.Context, status, message string) error {
	s.mu.RLock()
	id := s.projectID
	s.mu.RUnlock()
	if id == "" {
		return gateway.ErrNotFound
	}
	if err := s.api.TransitionProject(ctx, id, status, message); err != nil {
		return err
	}
	s.Refresh(ctx)
	return nil
}

// ProjectID returns the resolved id, empty until Resolve succeeds.
func (s *Store) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// Project returns the fetched project and whether one is loaded.
func (s *Store) Project() (gateway.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.loaded
}

// Missing reports that no project could be resolved for this user.
func (s *Store) Missing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.missing
}
