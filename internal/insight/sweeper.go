package insight

import (
	"context"
	"time"
)

const defaultSweepInterval = time.Minute

// Run re-checks every campaign's suppression state on a ticker until ctx is
// cancelled. Group breadth changes as sessions arrive or mappings are
// deleted, so visibility has to be reconciled continuously, not only at
// insight creation.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	refs, err := s.store.Campaigns(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enumerate campaigns", "error", err)
		return
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.CheckAndSuppress(ctx, ref.TenantID, ref.CampaignID); err != nil {
			s.logger.ErrorContext(ctx, "suppression sweep failed",
				"tenant_id", ref.TenantID,
				"campaign_id", ref.CampaignID,
				"error", err,
			)
		}
	}
}
