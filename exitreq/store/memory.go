// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/exit-engine/exitreq"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	requests map[string]exitreq.ExitRequest
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[string]exitreq.ExitRequest)}
}

// Create stores a complete record under the write lock, so readers never
// see it half-built.
func (m *Memory) Create(_ context.Context, r exitreq.ExitRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.requests[r.ID]; exists {
		return fmt.Errorf("exit request %s already exists", r.ID)
	}
	m.requests[r.ID] = clone(r)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (exitreq.ExitRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}
	return clone(r), nil
}

// UpdateStatus overwrites the decision fields. Last write wins.
func (m *Memory) UpdateStatus(_ context.Context, id string, status exitreq.Status, decidedBy string, decidedAt time.Time) (exitreq.ExitRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return exitreq.ExitRequest{}, fmt.Errorf("%w: %s", exitreq.ErrNotFound, id)
	}
	r.Status = status
	r.DecidedBy = decidedBy
	r.DecidedAt = &decidedAt
	m.requests[id] = r
	return clone(r), nil
}

func (m *Memory) ListByRequester(_ context.Context, requesterID string) ([]exitreq.ExitRequest, error) {
	return m.list(func(r exitreq.ExitRequest) bool { return r.RequesterID == requesterID }), nil
}

func (m *Memory) ListAll(_ context.Context, status exitreq.Status) ([]exitreq.ExitRequest, error) {
	return m.list(func(r exitreq.ExitRequest) bool { return status == "" || r.Status == status }), nil
}

func (m *Memory) list(keep func(exitreq.ExitRequest) bool) []exitreq.ExitRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]exitreq.ExitRequest, 0)
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(r exitreq.ExitRequest) exitreq.ExitRequest {
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		r.DecidedAt = &t
	}
	return r
}
