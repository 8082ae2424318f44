package insight

import (
	"context"
	"sync"

	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
)

// Store persists insights for suppression sweeps and visibility reads.
type Store interface {
	// ListByCampaign returns every insight in a campaign, suppressed or not.
	ListByCampaign(ctx context.Context, tenantID id.TenantID, campaignID id.CampaignID) ([]*Insight, error)
	// SetSuppressed flips the suppression flag on a single insight.
	// Returns sentinel.ErrNotFound when the insight does not exist.
	SetSuppressed(ctx context.Context, tenantID id.TenantID, insightID string, suppressed bool) error
	// Campaigns enumerates every (tenant, campaign) pair that holds
	// insights, for the periodic suppression sweep.
	Campaigns(ctx context.Context) ([]CampaignRef, error)
}

// MemoryStore is an in-memory Store for tests and single-node use.
type MemoryStore struct {
	mu       sync.RWMutex
	insights map[string]*Insight
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{insights: make(map[string]*Insight)}
}

// Seed inserts insights directly, for tests.
func (s *MemoryStore) Seed(insights ...*Insight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range insights {
		cp := *in
		s.insights[in.ID] = &cp
	}
}

func (s *MemoryStore) ListByCampaign(_ context.Context, tenantID id.TenantID, campaignID id.CampaignID) ([]*Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Insight
	for _, in := range s.insights {
		if in.TenantID == tenantID && in.CampaignID == campaignID {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) Campaigns(_ context.Context) ([]CampaignRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[CampaignRef]bool)
	var out []CampaignRef
	for _, in := range s.insights {
		ref := CampaignRef{TenantID: in.TenantID, CampaignID: in.CampaignID}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetSuppressed(_ context.Context, tenantID id.TenantID, insightID string, suppressed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.insights[insightID]
	if !ok || in.TenantID != tenantID {
		return sentinel.ErrNotFound
	}
	in.IsSuppressed = suppressed
	return nil
}
