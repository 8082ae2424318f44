package store

import (
	"context"
	"sort"
	"sync"

	"runadata/internal/reident"
	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and single-node use.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[id.RequestID]*reident.Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[id.RequestID]*reident.Request)}
}

func (s *MemoryStore) Create(_ context.Context, request *reident.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *request
	s.requests[request.ID] = &cp
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, tenantID id.TenantID, requestID id.RequestID) (*reident.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok || r.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) FindApprovedByPseudonym(_ context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*reident.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *reident.Request
	for _, r := range s.requests {
		if r.TenantID != tenantID || r.PseudonymID != pseudonymID || r.Status != reident.StatusApproved {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *oldest
	return &cp, nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenantID id.TenantID, status reident.Status) ([]*reident.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reident.Request
	for _, r := range s.requests {
		if r.TenantID != tenantID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, tenantID id.TenantID, requestID id.RequestID, from reident.Status, mutate func(*reident.Request) error) (*reident.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok || r.TenantID != tenantID {
		return nil, sentinel.ErrNotFound
	}
	if r.Status != from {
		return nil, sentinel.ErrConflict
	}
	cp := *r
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	s.requests[requestID] = &cp
	result := cp
	return &result, nil
}
