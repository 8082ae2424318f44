// Package vault maps real identities to opaque pseudonyms, one live mapping
// per (tenant, identity).
package vault

import (
	"time"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

// Mapping is the stored association between a pseudonym and an encrypted
// identity.
//
// Invariants:
//   - PseudonymID is unique within the tenant
//   - At most one live (IsDeleted=false) mapping exists per
//     (TenantID, IdentityDigest); the store enforces this atomically
//   - Rows are never physically deleted (audit retention); DeleteMapping
//     only sets IsDeleted
type Mapping struct {
	PseudonymID        id.PseudonymID
	TenantID           id.TenantID
	IdentityCiphertext string
	// IdentityDigest is the deterministic HMAC of the identity, the lookup
	// and uniqueness key. It never reveals the identity.
	IdentityDigest string
	CampaignID     id.CampaignID
	IsDeleted      bool
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewMapping constructs a live mapping with a fresh pseudonym.
func NewMapping(tenantID id.TenantID, ciphertext, digest string, campaignID id.CampaignID, now time.Time) (*Mapping, error) {
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "mapping requires a tenant")
	}
	if ciphertext == "" || digest == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "mapping requires encrypted identity material")
	}
	return &Mapping{
		PseudonymID:        id.NewPseudonymID(),
		TenantID:           tenantID,
		IdentityCiphertext: ciphertext,
		IdentityDigest:     digest,
		CampaignID:         campaignID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
