package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the privacy core.
type Metrics struct {
	RedactionsTotal      *prometheus.CounterVec
	TranscriptsRedacted  prometheus.Counter
	InsightsSuppressed   prometheus.Counter
	InsightsUnsuppressed prometheus.Counter
	IdentityResolutions  prometheus.Counter
	ApprovalDecisions    *prometheus.CounterVec
	AuditEventsDropped   prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RedactionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "runadata_redactions_total",
			Help: "PII spans redacted, by detector type",
		}, []string{"detector"}),
		TranscriptsRedacted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runadata_transcripts_pseudonymized_total",
			Help: "Transcripts pseudonymized end to end",
		}),
		InsightsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runadata_insights_suppressed_total",
			Help: "Insights flipped to suppressed by small-group checks",
		}),
		InsightsUnsuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runadata_insights_unsuppressed_total",
			Help: "Insights flipped back to visible by small-group checks",
		}),
		IdentityResolutions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runadata_identity_resolutions_total",
			Help: "Successful pseudonym resolutions",
		}),
		ApprovalDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "runadata_reident_decisions_total",
			Help: "Reidentification approval decisions, by outcome",
		}, []string{"outcome"}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "runadata_audit_events_dropped_total",
			Help: "Audit events lost after buffer and spill exhaustion",
		}),
	}
}
