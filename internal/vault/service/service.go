// Package service implements the pseudonym registry operations.
package service

import (
	"context"
	"errors"
	"log/slog"

	"runadata/internal/vault"
	"runadata/internal/vault/keyset"
	"runadata/internal/vault/store"
	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
	"runadata/pkg/platform/audit"
	"runadata/pkg/platform/sentinel"
	"runadata/pkg/requestcontext"
)

// ApprovalGate guards ResolveIdentity. The reidentification workflow
// implements it: a successful Consume atomically flips the approved request
// for the pseudonym to resolved, so each approval is usable exactly once.
type ApprovalGate interface {
	Consume(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, requester id.UserID) (id.RequestID, error)
}

// AuditTrail is the slice of the audit pipeline the registry needs.
type AuditTrail interface {
	Emit(ctx context.Context, event audit.Event)
}

// Registry owns pseudonym mappings: creation, lookup, soft deletion, and the
// gated resolution path.
type Registry struct {
	store   store.Store
	keyring *keyset.Keyring
	gate    ApprovalGate
	trail   AuditTrail
	logger  *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithApprovalGate wires the reidentification workflow in front of
// ResolveIdentity. Without a gate every resolution is refused.
func WithApprovalGate(gate ApprovalGate) Option {
	return func(r *Registry) { r.gate = gate }
}

// WithAuditTrail sets the audit sink for vault mutations.
func WithAuditTrail(trail AuditTrail) Option {
	return func(r *Registry) { r.trail = trail }
}

// SetApprovalGate wires the gate after construction. The registry and the
// workflow reference each other, so one of them has to be bound late.
func (r *Registry) SetApprovalGate(gate ApprovalGate) { r.gate = gate }

// New constructs a Registry.
func New(s store.Store, keyring *keyset.Keyring, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		keyring: keyring,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateMapping returns a pseudonym for the identity, creating the mapping if
// none exists. The upsert is atomic on (tenant, digest): concurrent calls for
// the same identity all receive the same pseudonym.
func (r *Registry) CreateMapping(ctx context.Context, identity id.UserID, tenantID id.TenantID, campaignID id.CampaignID) (id.PseudonymID, error) {
	if identity == "" {
		return "", dErrors.New(dErrors.CodeValidation, "identity cannot be empty")
	}
	if tenantID == "" {
		return "", dErrors.New(dErrors.CodeValidation, "tenant id cannot be empty")
	}

	ciphertext, err := r.keyring.EncryptIdentity(tenantID, identity)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal identity")
	}
	digest, err := r.keyring.Digest(tenantID, identity)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive lookup digest")
	}

	now := requestcontext.Now(ctx)
	mapping, err := vault.NewMapping(tenantID, ciphertext, digest, campaignID, now)
	if err != nil {
		return "", err
	}

	stored, created, err := r.store.Upsert(ctx, mapping)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist mapping")
	}
	if created && r.trail != nil {
		r.trail.Emit(ctx, audit.Event{
			TenantID:     tenantID,
			ActorID:      requestcontext.ActorID(ctx),
			ActorRole:    requestcontext.ActorRole(ctx),
			Action:       audit.ActionPseudonymCreated,
			ResourceType: "pseudonym_mapping",
			ResourceID:   stored.PseudonymID.String(),
			Success:      true,
			CorrelationID: requestcontext.RequestID(ctx),
		})
	}
	return stored.PseudonymID, nil
}

// GetPseudonym returns the live pseudonym for an identity.
// Errors: CodeNotFound when no live mapping exists.
func (r *Registry) GetPseudonym(ctx context.Context, identity id.UserID, tenantID id.TenantID) (id.PseudonymID, error) {
	digest, err := r.keyring.Digest(tenantID, identity)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive lookup digest")
	}
	mapping, err := r.store.FindByDigest(ctx, tenantID, digest)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "no pseudonym for identity")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up pseudonym")
	}
	return mapping.PseudonymID, nil
}

// DeleteMapping soft-deletes the mapping. Idempotent: deleting an absent or
// already deleted mapping succeeds.
func (r *Registry) DeleteMapping(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID) error {
	now := requestcontext.Now(ctx)
	if err := r.store.SoftDelete(ctx, tenantID, pseudonymID, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete mapping")
	}
	if r.trail != nil {
		r.trail.Emit(ctx, audit.Event{
			TenantID:      tenantID,
			ActorID:       requestcontext.ActorID(ctx),
			ActorRole:     requestcontext.ActorRole(ctx),
			Action:        audit.ActionMappingDeleted,
			ResourceType:  "pseudonym_mapping",
			ResourceID:    pseudonymID.String(),
			Success:       true,
			CorrelationID: requestcontext.RequestID(ctx),
		})
	}
	return nil
}

// Exists reports whether a live mapping backs the pseudonym. Used by the
// workflow when validating new reidentification requests.
func (r *Registry) Exists(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID) error {
	_, err := r.store.FindByPseudonym(ctx, tenantID, pseudonymID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "unknown pseudonym")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up mapping")
	}
	return nil
}

// ResolveIdentity returns the real identity behind a pseudonym.
//
// It requires an approved, unexpired reidentification request for the
// pseudonym; the gate consumes it (single use). The returned identity is
// ephemeral and must not be written into any store.
func (r *Registry) ResolveIdentity(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID, requester id.UserID) (id.UserID, error) {
	if r.gate == nil {
		return "", dErrors.New(dErrors.CodeForbidden, "resolution is not enabled")
	}
	requestID, err := r.gate.Consume(ctx, tenantID, pseudonymID, requester)
	if err != nil {
		return "", err
	}

	identity, err := r.Open(ctx, pseudonymID, tenantID)
	if err != nil {
		return "", err
	}
	if r.trail != nil {
		r.trail.Emit(ctx, audit.Event{
			TenantID:      tenantID,
			ActorID:       requester,
			ActorRole:     requestcontext.ActorRole(ctx),
			Action:        audit.ActionIdentityResolved,
			ResourceType:  "pseudonym_mapping",
			ResourceID:    pseudonymID.String(),
			Decision:      "granted",
			Success:       true,
			CorrelationID: requestcontext.RequestID(ctx),
			Details:       map[string]string{"request_id": requestID.String()},
		})
	}
	return identity, nil
}

// Open decrypts the identity behind a live pseudonym without consulting the
// approval gate. It exists for the reidentification workflow, which performs
// its own state transition before calling; it is not a public bypass.
func (r *Registry) Open(ctx context.Context, pseudonymID id.PseudonymID, tenantID id.TenantID) (id.UserID, error) {
	mapping, err := r.store.FindByPseudonym(ctx, tenantID, pseudonymID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "unknown pseudonym")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mapping")
	}
	identity, err := r.keyring.DecryptIdentity(tenantID, mapping.IdentityCiphertext)
	if err != nil {
		return "", err
	}
	return identity, nil
}
