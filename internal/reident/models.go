package reident

import (
	"time"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

// DefaultRequestTTL bounds how long an approved request stays usable.
// Expiry is checked lazily at resolve time; no background sweeper runs.
const DefaultRequestTTL = 24 * time.Hour

// Status is the dual-control state of a reidentification request.
//
// Lifecycle: pending -> first_approved -> approved -> resolved.
// rejected and expired are terminal; resolved is terminal too.
type Status string

const (
	StatusPending       Status = "pending"
	StatusFirstApproved Status = "first_approved"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusResolved      Status = "resolved"
	StatusExpired       Status = "expired"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusResolved || s == StatusExpired
}

// Request is a dual-control petition to reveal the identity behind a
// pseudonym. It never stores the identity itself; resolution hands the value
// to the caller and records only the fact of disclosure.
type Request struct {
	ID          id.RequestID
	TenantID    id.TenantID
	PseudonymID id.PseudonymID
	RequesterID id.UserID
	Reason      id.ReasonCode
	Details     string
	Status      Status

	FirstApproverID  id.UserID
	FirstApprovedAt  *time.Time
	SecondApproverID id.UserID
	SecondApprovedAt *time.Time

	RejectedBy      id.UserID
	RejectedAt      *time.Time
	RejectionReason string

	ResolvedBy id.UserID
	ResolvedAt *time.Time

	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// NewRequest builds a pending request with a fresh ID and the given TTL.
func NewRequest(tenantID id.TenantID, pseudonymID id.PseudonymID, requester id.UserID, reason id.ReasonCode, details string, ttl time.Duration, now time.Time) (*Request, error) {
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if pseudonymID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "pseudonym id is required")
	}
	if requester == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requester is required")
	}
	if !reason.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown reason code: "+reason.String())
	}
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	return &Request{
		ID:          id.NewRequestID(),
		TenantID:    tenantID,
		PseudonymID: pseudonymID,
		RequesterID: requester,
		Reason:      reason,
		Details:     details,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		UpdatedAt:   now,
	}, nil
}

// ExpiredAt reports whether the request's window has closed at the given time.
// Terminal statuses never expire retroactively.
func (r *Request) ExpiredAt(now time.Time) bool {
	return !r.Status.Terminal() && !now.Before(r.ExpiresAt)
}

// ApplyFirstApproval records the admin approval. The slot order is fixed:
// the first signature must come from an admin, and an actor may not co-sign
// a request they filed.
func (r *Request) ApplyFirstApproval(approver id.UserID, role id.Role, now time.Time) error {
	if r.Status != StatusPending {
		return dErrors.New(dErrors.CodeConflict, "request is not awaiting first approval")
	}
	if role != id.RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "first approval requires the admin role")
	}
	if approver == r.RequesterID {
		return dErrors.New(dErrors.CodeForbidden, "requester cannot approve their own request")
	}
	r.Status = StatusFirstApproved
	r.FirstApproverID = approver
	r.FirstApprovedAt = &now
	r.UpdatedAt = now
	return nil
}

// ApplySecondApproval records the security officer counter-signature. The
// second approver must differ from both the requester and the first approver.
func (r *Request) ApplySecondApproval(approver id.UserID, role id.Role, now time.Time) error {
	if r.Status != StatusFirstApproved {
		return dErrors.New(dErrors.CodeConflict, "request is not awaiting second approval")
	}
	if role != id.RoleSecurityOfficer {
		return dErrors.New(dErrors.CodeForbidden, "second approval requires the security_officer role")
	}
	if approver == r.RequesterID {
		return dErrors.New(dErrors.CodeForbidden, "requester cannot approve their own request")
	}
	if approver == r.FirstApproverID {
		return dErrors.New(dErrors.CodeForbidden, "both approvals cannot come from the same actor")
	}
	r.Status = StatusApproved
	r.SecondApproverID = approver
	r.SecondApprovedAt = &now
	r.UpdatedAt = now
	return nil
}

// ApplyRejection closes the request. Allowed from pending and first_approved.
func (r *Request) ApplyRejection(rejector id.UserID, reason string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusFirstApproved {
		return dErrors.New(dErrors.CodeConflict, "request is not open for rejection")
	}
	r.Status = StatusRejected
	r.RejectedBy = rejector
	r.RejectedAt = &now
	r.RejectionReason = reason
	r.UpdatedAt = now
	return nil
}

// ApplyResolution marks the approval consumed. Allowed from approved only.
func (r *Request) ApplyResolution(resolver id.UserID, now time.Time) error {
	if r.Status != StatusApproved {
		return dErrors.New(dErrors.CodeConflict, "request is not approved")
	}
	r.Status = StatusResolved
	r.ResolvedBy = resolver
	r.ResolvedAt = &now
	r.UpdatedAt = now
	return nil
}

// ApplyExpiry flips an overdue request to its terminal expired state.
func (r *Request) ApplyExpiry(now time.Time) error {
	if r.Status.Terminal() {
		return dErrors.New(dErrors.CodeConflict, "request is already closed")
	}
	r.Status = StatusExpired
	r.UpdatedAt = now
	return nil
}
