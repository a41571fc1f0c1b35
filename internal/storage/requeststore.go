package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/field-dispatch/internal/models"
)

// ErrNotFound is returned when a job id has no record.
var ErrNotFound = errors.New("service request not found")

// RequestStore defines persistence operations for service requests.
type RequestStore interface {
	Save(ctx context.Context, r *models.ServiceRequest) error
	Update(ctx context.Context, r *models.ServiceRequest) error
	Find(ctx context.Context, id string) (*models.ServiceRequest, error)
	List(ctx context.Context) ([]*models.ServiceRequest, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]models.ServiceRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[string]models.ServiceRequest)}
}

func (m *MemoryStore) Save(ctx context.Context, r *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, r *models.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return ErrNotFound
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, id string) (*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneRequest(&r)
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ServiceRequest, 0, len(m.requests))
	for _, r := range m.requests {
		cp := cloneRequest(&r)
		out = append(out, &cp)
	}
	return out, nil
}

// cloneRequest copies the record so callers can never mutate the stored
// assignment slice behind the store's back.
func cloneRequest(r *models.ServiceRequest) models.ServiceRequest {
	cp := *r
	cp.AssignedStaff = append([]string(nil), r.AssignedStaff...)
	return cp
}
