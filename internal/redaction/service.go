package redaction

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"runadata/internal/platform/metrics"
	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
	"runadata/pkg/platform/audit"
	"runadata/pkg/platform/sentinel"
	"runadata/pkg/requestcontext"
)

// PseudonymProvider is the slice of the vault registry this service needs to
// resolve or create the transcript owner's pseudonym.
type PseudonymProvider interface {
	GetPseudonym(ctx context.Context, identity id.UserID, tenantID id.TenantID) (id.PseudonymID, error)
	CreateMapping(ctx context.Context, identity id.UserID, tenantID id.TenantID, campaignID id.CampaignID) (id.PseudonymID, error)
}

// AuditTrail is the slice of the audit pipeline this service needs.
type AuditTrail interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service pseudonymizes transcripts: redacts participant turns, vaults the
// owner identity, and stamps the transcript so it is processed exactly once.
type Service struct {
	transcripts TranscriptStore
	vault       PseudonymProvider
	trail       AuditTrail
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) { s.trail = trail }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(transcripts TranscriptStore, vault PseudonymProvider, opts ...Option) *Service {
	s := &Service{
		transcripts: transcripts,
		vault:       vault,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PseudonymizeTranscript redacts a transcript in place.
//
// Idempotent guard: a transcript that is missing or already pseudonymized
// yields Summary{Success: false} and no changes. Only participant turns are
// redacted; a turn whose redaction fails is skipped, flagged in the summary,
// and the rest of the transcript still commits.
func (s *Service) PseudonymizeTranscript(ctx context.Context, tenantID id.TenantID, transcriptID id.TranscriptID) (Summary, error) {
	transcript, err := s.transcripts.FindByID(ctx, tenantID, transcriptID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Summary{Success: false, Reason: "transcript not found"}, nil
	}
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transcript")
	}
	if transcript.IsPseudonymized {
		return Summary{Success: false, Reason: "transcript already pseudonymized"}, nil
	}

	pseudonymID, err := s.ownerPseudonym(ctx, transcript)
	if err != nil {
		return Summary{}, err
	}

	salt := transcript.SessionID.String()
	var allRecords []Record
	var skipped []int
	redacted := make([]Message, len(transcript.Messages))
	for i, msg := range transcript.Messages {
		redacted[i] = msg
		if msg.Speaker != SpeakerParticipant {
			continue
		}
		content, records, err := PseudonymizeText(msg.Content, salt)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unredactable message",
				"transcript_id", transcriptID,
				"message_index", i,
				"error", err,
			)
			skipped = append(skipped, i)
			continue
		}
		redacted[i].Content = content
		allRecords = append(allRecords, records...)
	}

	now := requestcontext.Now(ctx)
	transcript.Messages = redacted
	transcript.IsPseudonymized = true
	transcript.PseudonymizedAt = &now
	transcript.PseudonymID = pseudonymID
	transcript.UpdatedAt = now
	if err := s.transcripts.Update(ctx, transcript); err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist redacted transcript")
	}

	summary := Summary{
		Success:         true,
		PseudonymID:     pseudonymID,
		RedactionCount:  len(allRecords),
		DetectorTypes:   distinctDetectors(allRecords),
		SkippedMessages: skipped,
	}
	s.observe(ctx, transcript, summary, allRecords)
	return summary, nil
}

// ownerPseudonym resolves the transcript owner's pseudonym, creating the
// mapping on first contact.
func (s *Service) ownerPseudonym(ctx context.Context, transcript *Transcript) (id.PseudonymID, error) {
	pseudonymID, err := s.vault.GetPseudonym(ctx, transcript.UserID, transcript.TenantID)
	if err == nil {
		return pseudonymID, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return "", err
	}
	return s.vault.CreateMapping(ctx, transcript.UserID, transcript.TenantID, transcript.CampaignID)
}

func (s *Service) observe(ctx context.Context, transcript *Transcript, summary Summary, records []Record) {
	if s.metrics != nil {
		s.metrics.TranscriptsRedacted.Inc()
		for _, r := range records {
			s.metrics.RedactionsTotal.WithLabelValues(string(r.Detector)).Inc()
		}
	}
	if s.trail == nil {
		return
	}
	details := map[string]string{
		"redaction_count": strconv.Itoa(summary.RedactionCount),
		"skipped":         strconv.Itoa(len(summary.SkippedMessages)),
	}
	s.trail.Emit(ctx, audit.Event{
		TenantID:      transcript.TenantID,
		ActorID:       requestcontext.ActorID(ctx),
		ActorRole:     requestcontext.ActorRole(ctx),
		Action:        audit.ActionTranscriptPseudonymized,
		ResourceType:  "transcript",
		ResourceID:    transcript.ID.String(),
		Success:       true,
		CorrelationID: requestcontext.RequestID(ctx),
		Details:       details,
	})
}

func distinctDetectors(records []Record) []DetectorType {
	seen := make(map[DetectorType]bool)
	var out []DetectorType
	for _, r := range records {
		if !seen[r.Detector] {
			seen[r.Detector] = true
			out = append(out, r.Detector)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
