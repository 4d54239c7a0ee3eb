// Package task tracks a project's task list, verification requests, and
// status transitions.
package task

import (
	"context"
	"slices"
	"sync"
	"time"

	"renomarket.org/internal/audit"
	"renomarket.org/internal/gateway"
	"renomarket.org/internal/obs"
)

// Store holds the task list for one project. Fetches replace the whole
// list; targeted mutations merge locally and persist, with the server
// staying authoritative on the next fetch.
type Store struct {
	mu  sync.RWMutex
	api *gateway.Client
	now func() time.Time

	projectID string
	tasks     []gateway.Task
	loaded    bool
	gen       uint64
}

func New(api *gateway.Client) *Store {
	return &Store{api: api, now: time.Now}
}

// Load fetches the task list for the project, replacing local state.
// Failures are logged and the previous list is retained.
func (s *Store) Load(ctx context.Context, projectID string) {
	s.mu.Lock()
	s.projectID = projectID
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	tasks, err := s.api.Tasks(ctx, projectID)
	if err != nil {
		obs.Error("task fetch failed", err, map[string]any{"project_id": projectID})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return // superseded
	}
	s.tasks = tasks
	s.loaded = true
}

// Tasks returns a copy of the current list.
func (s *Store) Tasks() []gateway.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gateway.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Loaded reports whether at least one fetch has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// RequestVerification appends a verification type to the task's set and
// persists the whole set. A type appears at most once: requesting one
// already present is a no-op with no network call.
func (s *Store) RequestVerification(ctx context.Context, taskID, vtype string) error {
	s.mu.Lock()
	t := s.find(taskID)
	if t == nil {
		s.mu.Unlock()
		return gateway.ErrNotFound
	}
	if slices.Contains(t.VerificationRequests, vtype) {
		s.mu.Unlock()
		return nil
	}
	t.VerificationRequests = append(t.VerificationRequests, vtype)
	types := slices.Clone(t.VerificationRequests)
	s.mu.Unlock()

	audit.LogEvent(ctx, "task.verification.request", map[string]any{"taskId": taskID, "type": vtype})
	return s.api.PatchTaskVerification(ctx, taskID, types)
}

// RemoveVerification removes a verification type locally, persists, then
// refetches the full list so local and server state converge even if the
// targeted patch and the optimistic removal briefly disagreed.
func (s *Store) RemoveVerification(ctx context.Context, taskID, vtype string) error {
	s.mu.Lock()
	t := s.find(taskID)
	if t == nil {
		s.mu.Unlock()
		return gateway.ErrNotFound
	}
	t.VerificationRequests = slices.DeleteFunc(t.VerificationRequests, func(v string) bool {
		return v == vtype
	})
	types := slices.Clone(t.VerificationRequests)
	projectID := s.projectID
	s.mu.Unlock()

	audit.LogEvent(ctx, "task.verification.remove", map[string]any{"taskId": taskID, "type": vtype})
	if err := s.api.PatchTaskVerification(ctx, taskID, types); err != nil {
		return err
	}
	s.Load(ctx, projectID)
	return nil
}

// SetStatus transitions a task and persists. Moving to in-progress stamps a
// start date if unset; moving to completed stamps a completion date. Both
// stamps are optimistic display values only.
func (s *Store) SetStatus(ctx context.Context, taskID, status string) error {
	s.mu.Lock()
	t := s.find(taskID)
	if t == nil {
		s.mu.Unlock()
		return gateway.ErrNotFound
	}
	t.Status = status
	now := s.now().UTC()
	switch status {
	case gateway.TaskInProgress:
		if t.StartDate == nil {
			t.StartDate = &now
		}
	case gateway.TaskCompleted:
		t.CompletedDate = &now
	}
	s.mu.Unlock()

	audit.LogEvent(ctx, "task.status", map[string]any{"taskId": taskID, "status": status})
	return s.api.PatchTaskStatus(ctx, taskID, status)
}

// Review approves or rejects a completed task on the server, then refetches.
func (s *Store) Review(ctx context.Context, taskID string, approve bool, message string) error {
	if err := s.api.ReviewTask(ctx, taskID, approve, message); err != nil {
		return err
	}
	s.mu.RLock()
	projectID := s.projectID
	s.mu.RUnlock()
	audit.LogEvent(ctx, "task.review", map[string]any{"taskId": taskID, "approved": approve})
	s.Load(ctx, projectID)
	return nil
}

// find returns a pointer into s.tasks; callers hold s.mu.
func (s *Store) find(taskID string) *gateway.Task {
	for i := range s.tasks {
		if s.tasks[i].ID == taskID {
			return &s.tasks[i]
		}
	}
	return nil
}
