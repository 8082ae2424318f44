package insight

import (
	"context"
	"log/slog"
	"strconv"

	"runadata/internal/platform/metrics"
	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
	"runadata/pkg/platform/audit"
	"runadata/pkg/requestcontext"
)

// DefaultSmallGroupThreshold is the minimum number of distinct contributing
// sessions an insight group needs before it may be shown.
const DefaultSmallGroupThreshold = 5

// AuditTrail is the slice of the audit pipeline this service needs.
type AuditTrail interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service enforces small-group suppression over campaign insights.
//
// Insights are grouped by (type, category) and each group's breadth is the
// number of distinct sessions that contributed to it. Groups below the
// threshold are hidden from non-privileged viewers; groups whose breadth
// recovers are made visible again. Groups with no session evidence at all are
// treated as too small.
type Service struct {
	store     Store
	threshold int
	trail     AuditTrail
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threshold = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) { s.trail = trail }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		threshold: DefaultSmallGroupThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAndSuppress sweeps a campaign's insights and reconciles each one's
// suppression flag with its group's current breadth. The sweep is idempotent;
// only actual flips touch the store and the returned counters.
func (s *Service) CheckAndSuppress(ctx context.Context, tenantID id.TenantID, campaignID id.CampaignID) (Result, error) {
	if tenantID == "" {
		return Result{}, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	insights, err := s.store.ListByCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list insights")
	}

	groups := make(map[groupKey][]*Insight)
	sources := make(map[groupKey]map[id.SessionID]bool)
	for _, in := range insights {
		key := groupKey{Type: in.Type, CategoryID: in.CategoryID}
		groups[key] = append(groups[key], in)
		if in.SourceSessionID == "" {
			continue
		}
		if sources[key] == nil {
			sources[key] = make(map[id.SessionID]bool)
		}
		sources[key][in.SourceSessionID] = true
	}

	var result Result
	for key, members := range groups {
		result.GroupsChecked++
		breadth := len(sources[key])
		if breadth == 0 {
			result.ZeroSourceGroups++
		}
		suppress := breadth < s.threshold
		for _, in := range members {
			if in.IsSuppressed == suppress {
				continue
			}
			if err := s.store.SetSuppressed(ctx, tenantID, in.ID, suppress); err != nil {
				return result, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update suppression flag")
			}
			if suppress {
				result.Suppressed++
			} else {
				result.Unsuppressed++
			}
		}
	}

	s.observe(ctx, tenantID, campaignID, result)
	return result, nil
}

// IsVisible reports whether a viewer with the given role may see the insight.
// Suppressed insights remain visible to privileged compliance roles.
func (s *Service) IsVisible(in *Insight, role id.Role) bool {
	if !in.IsSuppressed {
		return true
	}
	return role.CanViewSuppressed()
}

// VisibleInsights returns the campaign's insights filtered by the viewer's
// role.
func (s *Service) VisibleInsights(ctx context.Context, tenantID id.TenantID, campaignID id.CampaignID, role id.Role) ([]*Insight, error) {
	insights, err := s.store.ListByCampaign(ctx, tenantID, campaignID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list insights")
	}
	visible := make([]*Insight, 0, len(insights))
	for _, in := range insights {
		if s.IsVisible(in, role) {
			visible = append(visible, in)
		}
	}
	return visible, nil
}

func (s *Service) observe(ctx context.Context, tenantID id.TenantID, campaignID id.CampaignID, result Result) {
	if s.metrics != nil {
		s.metrics.InsightsSuppressed.Add(float64(result.Suppressed))
		s.metrics.InsightsUnsuppressed.Add(float64(result.Unsuppressed))
	}
	if result.Suppressed == 0 && result.Unsuppressed == 0 {
		return
	}
	s.logger.InfoContext(ctx, "suppression sweep changed visibility",
		"tenant_id", tenantID,
		"campaign_id", campaignID,
		"suppressed", result.Suppressed,
		"unsuppressed", result.Unsuppressed,
	)
	if s.trail == nil {
		return
	}
	s.trail.Emit(ctx, audit.Event{
		TenantID:      tenantID,
		ActorID:       requestcontext.ActorID(ctx),
		ActorRole:     requestcontext.ActorRole(ctx),
		Action:        audit.ActionInsightsSuppressed,
		ResourceType:  "campaign",
		ResourceID:    campaignID.String(),
		Success:       true,
		CorrelationID: requestcontext.RequestID(ctx),
		Details: map[string]string{
			"suppressed":   strconv.Itoa(result.Suppressed),
			"unsuppressed": strconv.Itoa(result.Unsuppressed),
			"threshold":    strconv.Itoa(s.threshold),
		},
	})
}
