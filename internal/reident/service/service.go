// Package service implements the dual-control reidentification workflow.
//
// Every request needs two approvals from distinct actors in a fixed order
// (admin first, security officer second) before the vault will open the
// pseudonym. Approvals are single use: resolution consumes the request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"runadata/internal/disclosure"
	"runadata/internal/platform/metrics"
	"runadata/internal/reident"
	"runadata/internal/reident/store"
	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
	"runadata/pkg/platform/audit"
	"runadata/pkg/platform/sentinel"
	"runadata/pkg/requestcontext"
)

// Vault is the slice of the pseudonym registry the workflow needs: existence
// checks when a request is filed and decryption once it is consumed.
type Vault interface {
	Exists(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID) error
	Open(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID) (id.UserID, error)
}

// AuditTrail is the slice of the audit pipeline the workflow needs.
type AuditTrail interface {
	Emit(ctx context.Context, event audit.Event)
}

// Disclosure holds everything Resolve returns to the caller. The identity is
// ephemeral; only the receipt is meant to outlive the call.
type Disclosure struct {
	RequestID id.RequestID
	Identity  id.UserID
	Receipt   string
}

// Service drives reidentification requests through their lifecycle.
type Service struct {
	store    store.Store
	vault    Vault
	receipts *disclosure.Issuer
	ttl      time.Duration
	trail    AuditTrail
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

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

// WithRequestTTL overrides the approval window for new requests.
func WithRequestTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithReceiptIssuer enables signed disclosure receipts on Resolve.
func WithReceiptIssuer(issuer *disclosure.Issuer) Option {
	return func(s *Service) { s.receipts = issuer }
}

func New(s store.Store, vault Vault, opts ...Option) *Service {
	svc := &Service{
		store:  s,
		vault:  vault,
		ttl:    reident.DefaultRequestTTL,
		logger: slog.Default(),
		tracer: otel.Tracer("runadata/reident"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Create files a new pending request for the pseudonym.
// Errors: CodeNotFound when the pseudonym has no live mapping, CodeValidation
// for a bad reason code or missing fields.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, requester id.UserID, reason, details string) (*reident.Request, error) {
	ctx, span := s.tracer.Start(ctx, "reident.Create",
		trace.WithAttributes(attribute.String("tenant_id", tenantID.String())))
	defer span.End()

	reasonCode, err := id.ParseReasonCode(reason)
	if err != nil {
		return nil, err
	}
	if err := s.vault.Exists(ctx, pseudonymID, tenantID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	request, err := reident.NewRequest(tenantID, pseudonymID, requester, reasonCode, details, s.ttl, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, request); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist request")
	}

	s.emit(ctx, request, audit.ActionReidentRequested, "filed", true, nil)
	s.logger.InfoContext(ctx, "reidentification requested",
		"tenant_id", tenantID,
		"request_id", request.ID,
		"reason", reasonCode,
	)
	return request, nil
}

// Approve records one approval signature. The slot is inferred from the
// request's current status; the state machine enforces role order and
// distinct actors.
//
// Errors: CodeConflict when the request is not awaiting that signature (or a
// concurrent decision won), CodeForbidden for role or same-actor violations,
// CodeExpired when the approval window has closed.
func (s *Service) Approve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, approver id.UserID, role id.Role) (*reident.Request, error) {
	ctx, span := s.tracer.Start(ctx, "reident.Approve",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer span.End()

	request, err := s.load(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if request.ExpiredAt(now) {
		return nil, s.expire(ctx, request, now)
	}

	from := request.Status
	updated, err := s.store.Transition(ctx, tenantID, requestID, from, func(r *reident.Request) error {
		switch from {
		case reident.StatusPending:
			return r.ApplyFirstApproval(approver, role, now)
		case reident.StatusFirstApproved:
			return r.ApplySecondApproval(approver, role, now)
		default:
			return dErrors.New(dErrors.CodeConflict, "request is not awaiting approval")
		}
	})
	if err != nil {
		s.emit(ctx, request, audit.ActionReidentApproved, "denied", false, err)
		s.count("denied")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "request was decided concurrently")
		}
		return nil, err
	}

	s.emit(ctx, updated, audit.ActionReidentApproved, "granted", true, nil)
	s.count(string(updated.Status))
	return updated, nil
}

// Reject closes an open request. Allowed from pending or first_approved.
func (s *Service) Reject(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, rejector id.UserID, reason string) (*reident.Request, error) {
	request, err := s.load(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	updated, err := s.store.Transition(ctx, tenantID, requestID, request.Status, func(r *reident.Request) error {
		return r.ApplyRejection(rejector, reason, now)
	})
	if err != nil {
		s.emit(ctx, request, audit.ActionReidentRejected, "denied", false, err)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "request was decided concurrently")
		}
		return nil, err
	}

	s.emit(ctx, updated, audit.ActionReidentRejected, "rejected", true, nil)
	s.count("rejected")
	return updated, nil
}

// Resolve consumes an approved request and discloses the identity behind its
// pseudonym. Expiry is enforced here: an overdue request flips to expired and
// the disclosure is refused.
//
// Errors: CodeExpired past the window, CodeConflict when the request is not
// in approved status (including an earlier resolve winning the race).
func (s *Service) Resolve(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, resolver id.UserID) (*Disclosure, error) {
	ctx, span := s.tracer.Start(ctx, "reident.Resolve",
		trace.WithAttributes(attribute.String("request_id", requestID.String())))
	defer span.End()

	request, err := s.load(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if request.ExpiredAt(now) {
		return nil, s.expire(ctx, request, now)
	}

	updated, err := s.store.Transition(ctx, tenantID, requestID, reident.StatusApproved, func(r *reident.Request) error {
		return r.ApplyResolution(resolver, now)
	})
	if err != nil {
		s.emit(ctx, request, audit.ActionReidentResolved, "denied", false, err)
		s.count("denied")
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "request is not approved or was already resolved")
		}
		return nil, err
	}

	identity, err := s.vault.Open(ctx, updated.PseudonymID, tenantID)
	if err != nil {
		s.emit(ctx, updated, audit.ActionReidentResolved, "denied", false, err)
		return nil, err
	}

	result := &Disclosure{RequestID: updated.ID, Identity: identity}
	if s.receipts != nil {
		receipt, err := s.receipts.Issue(
			updated.ID, tenantID, updated.PseudonymID,
			updated.RequesterID, updated.FirstApproverID, updated.SecondApproverID,
			updated.Reason, now,
		)
		if err != nil {
			return nil, err
		}
		result.Receipt = receipt
	}

	s.emit(ctx, updated, audit.ActionReidentResolved, "granted", true, nil)
	s.count("resolved")
	if s.metrics != nil {
		s.metrics.IdentityResolutions.Inc()
	}
	return result, nil
}

// Consume implements the vault's approval gate: it finds an approved request
// for the pseudonym and atomically marks it resolved. Expired approvals are
// flipped aside and the search continues.
func (s *Service) Consume(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, requester id.UserID) (id.RequestID, error) {
	now := requestcontext.Now(ctx)
	for attempt := 0; attempt < 5; attempt++ {
		request, err := s.store.FindApprovedByPseudonym(ctx, tenantID, pseudonymID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeForbidden, "no approved reidentification request for pseudonym")
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up approvals")
		}

		if request.ExpiredAt(now) {
			// Retire it and look for another approval.
			_, err := s.store.Transition(ctx, tenantID, request.ID, reident.StatusApproved, func(r *reident.Request) error {
				return r.ApplyExpiry(now)
			})
			if err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire request")
			}
			s.emit(ctx, request, audit.ActionReidentExpired, "expired", true, nil)
			continue
		}

		updated, err := s.store.Transition(ctx, tenantID, request.ID, reident.StatusApproved, func(r *reident.Request) error {
			return r.ApplyResolution(requester, now)
		})
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume approval")
		}
		s.count("resolved")
		return updated.ID, nil
	}
	return "", dErrors.New(dErrors.CodeConflict, "approval contention, retry")
}

// Status returns the current state of a request.
func (s *Service) Status(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*reident.Request, error) {
	return s.load(ctx, tenantID, requestID)
}

// List returns a tenant's requests, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, status reident.Status) ([]*reident.Request, error) {
	requests, err := s.store.ListByTenant(ctx, tenantID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list requests")
	}
	return requests, nil
}

func (s *Service) load(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*reident.Request, error) {
	request, err := s.store.FindByID(ctx, tenantID, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown reidentification request")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load request")
	}
	return request, nil
}

// expire flips an overdue request to expired and returns the CodeExpired
// error the caller surfaces. A lost race means someone else closed it first,
// which is fine.
func (s *Service) expire(ctx context.Context, request *reident.Request, now time.Time) error {
	_, err := s.store.Transition(ctx, request.TenantID, request.ID, request.Status, func(r *reident.Request) error {
		return r.ApplyExpiry(now)
	})
	if err != nil && !errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire request")
	}
	if err == nil {
		s.emit(ctx, request, audit.ActionReidentExpired, "expired", true, nil)
		s.count("expired")
	}
	return dErrors.New(dErrors.CodeExpired, "reidentification request has expired")
}

func (s *Service) emit(ctx context.Context, request *reident.Request, action audit.Action, decision string, success bool, opErr error) {
	if s.trail == nil {
		return
	}
	event := audit.Event{
		TenantID:      request.TenantID,
		ActorID:       requestcontext.ActorID(ctx),
		ActorRole:     requestcontext.ActorRole(ctx),
		Action:        action,
		ResourceType:  "reident_request",
		ResourceID:    request.ID.String(),
		Decision:      decision,
		Reason:        request.Reason.String(),
		Success:       success,
		CorrelationID: requestcontext.RequestID(ctx),
		Details: map[string]string{
			"pseudonym_id": request.PseudonymID.String(),
			"status":       string(request.Status),
		},
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	s.trail.Emit(ctx, event)
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ApprovalDecisions.WithLabelValues(outcome).Inc()
	}
}
