package redaction

import (
	"context"
	"time"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 50
)

// Run polls for unpseudonymized transcripts and processes them until ctx is
// cancelled. Individual transcript failures are logged and skipped; the loop
// keeps going.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.drainPending(ctx)
		}
	}
}

func (s *Service) drainPending(ctx context.Context) {
	pending, err := s.transcripts.ListPending(ctx, defaultBatchSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list pending transcripts", "error", err)
		return
	}
	for _, t := range pending {
		if ctx.Err() != nil {
			return
		}
		summary, err := s.PseudonymizeTranscript(ctx, t.TenantID, t.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to pseudonymize transcript",
				"transcript_id", t.ID,
				"tenant_id", t.TenantID,
				"error", err,
			)
			continue
		}
		if !summary.Success {
			// Another worker got there first.
			continue
		}
		s.logger.InfoContext(ctx, "transcript pseudonymized",
			"transcript_id", t.ID,
			"tenant_id", t.TenantID,
			"redactions", summary.RedactionCount,
			"skipped", len(summary.SkippedMessages),
		)
	}
}
