// Package audit is the append-only trail every state-changing privacy
// operation reports to. Emission is fire-and-forget: delivery problems are
// buffered, spilled, and retried without ever blocking or failing the
// operation that produced the event.
package audit

import (
	"context"
	"time"

	id "runadata/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// vault mutations, transcript pseudonymization, identity disclosure.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers security decisions: approval, rejection, and
	// resolution attempts (successful or not). These feed SIEM pipelines.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine recomputation events that can be
	// sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Action names a privacy-core operation in the trail.
type Action string

const (
	ActionPseudonymCreated        Action = "pseudonym_created"
	ActionMappingDeleted          Action = "mapping_deleted"
	ActionIdentityResolved        Action = "identity_resolved"
	ActionTranscriptPseudonymized Action = "transcript_pseudonymized"
	ActionInsightsSuppressed      Action = "insights_suppressed"
	ActionReidentRequested        Action = "reidentification_requested"
	ActionReidentApproved         Action = "reidentification_approved"
	ActionReidentRejected         Action = "reidentification_rejected"
	ActionReidentResolved         Action = "reidentification_resolved"
	ActionReidentExpired          Action = "reidentification_expired"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]EventCategory{
	ActionPseudonymCreated:        CategoryCompliance,
	ActionMappingDeleted:          CategoryCompliance,
	ActionIdentityResolved:        CategoryCompliance,
	ActionTranscriptPseudonymized: CategoryCompliance,
	ActionInsightsSuppressed:      CategoryOperations,
	ActionReidentRequested:        CategorySecurity,
	ActionReidentApproved:         CategorySecurity,
	ActionReidentRejected:         CategorySecurity,
	ActionReidentResolved:         CategorySecurity,
	ActionReidentExpired:          CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture a privacy decision. It is
// transport-agnostic so sinks can fan out, and it never carries raw PII:
// identities appear only as pseudonyms or truncated one-way hashes.
type Event struct {
	Category     EventCategory     `json:"category"`
	Timestamp    time.Time         `json:"timestamp"`
	TenantID     id.TenantID       `json:"tenant_id"`
	ActorID      id.UserID         `json:"actor_id,omitempty"`
	ActorRole    id.Role           `json:"actor_role,omitempty"`
	Action       Action            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	// Decision records the outcome of a security decision ("granted",
	// "denied", ...). Failed approval attempts are emitted too.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`
	// CorrelationID ties the event back to the originating request.
	CorrelationID string            `json:"correlation_id,omitempty"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// Sink receives events for durable storage. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Spill is the overflow queue events land in when the sink is unavailable.
// The trail worker replays spilled events on a ticker.
type Spill interface {
	Push(ctx context.Context, event Event) error
	Pop(ctx context.Context) (Event, bool, error)
}
