package audit

import (
	"context"
	"sync"

	id "runadata/pkg/domain"
)

// MemorySink is an in-process sink used in tests and single-node deployments.
type MemorySink struct {
	mu     sync.RWMutex
	events map[id.TenantID][]Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: make(map[id.TenantID][]Event)}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.TenantID] = append(s.events[event.TenantID], event)
	return nil
}

// ListByTenant returns a copy of the tenant's events in append order.
func (s *MemorySink) ListByTenant(_ context.Context, tenantID id.TenantID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[tenantID]...), nil
}

// ListByAction filters a tenant's events by action. Test helper.
func (s *MemorySink) ListByAction(_ context.Context, tenantID id.TenantID, action Action) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events[tenantID] {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out, nil
}
