package store

import (
	"context"
	"sync"
	"time"

	"runadata/internal/vault"
	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
)

type digestKey struct {
	tenant id.TenantID
	digest string
}

type pseudonymKey struct {
	tenant    id.TenantID
	pseudonym id.PseudonymID
}

// MemoryStore is the in-process mapping store. The single mutex makes Upsert
// atomic, which is what replaces the old check-then-act insert.
type MemoryStore struct {
	mu          sync.RWMutex
	byPseudonym map[pseudonymKey]*vault.Mapping
	// liveByDigest indexes only live mappings; entries are removed on soft
	// delete so a new mapping for the same identity can be created later.
	liveByDigest map[digestKey]*vault.Mapping
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byPseudonym:  make(map[pseudonymKey]*vault.Mapping),
		liveByDigest: make(map[digestKey]*vault.Mapping),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, mapping *vault.Mapping) (*vault.Mapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dk := digestKey{tenant: mapping.TenantID, digest: mapping.IdentityDigest}
	if existing, ok := s.liveByDigest[dk]; ok {
		return copyMapping(existing), false, nil
	}

	stored := copyMapping(mapping)
	s.liveByDigest[dk] = stored
	s.byPseudonym[pseudonymKey{tenant: mapping.TenantID, pseudonym: mapping.PseudonymID}] = stored
	return copyMapping(stored), true, nil
}

func (s *MemoryStore) FindByDigest(_ context.Context, tenantID id.TenantID, digest string) (*vault.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, ok := s.liveByDigest[digestKey{tenant: tenantID, digest: digest}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyMapping(mapping), nil
}

func (s *MemoryStore) FindByPseudonym(_ context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*vault.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mapping, ok := s.byPseudonym[pseudonymKey{tenant: tenantID, pseudonym: pseudonymID}]
	if !ok || mapping.IsDeleted {
		return nil, sentinel.ErrNotFound
	}
	return copyMapping(mapping), nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mapping, ok := s.byPseudonym[pseudonymKey{tenant: tenantID, pseudonym: pseudonymID}]
	if !ok || mapping.IsDeleted {
		return nil
	}
	mapping.IsDeleted = true
	mapping.UpdatedAt = now
	delete(s.liveByDigest, digestKey{tenant: tenantID, digest: mapping.IdentityDigest})
	return nil
}

func copyMapping(m *vault.Mapping) *vault.Mapping {
	out := *m
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}
