// Package store persists pseudonym mappings. Both implementations enforce the
// single-live-mapping invariant atomically via the (tenant, digest) key.
package store

import (
	"context"
	"time"

	"runadata/internal/vault"
	id "runadata/pkg/domain"
)

// Store is the persistence contract for pseudonym mappings. Implementations
// return pkg/platform/sentinel errors for store-level facts.
type Store interface {
	// Upsert inserts the mapping unless a live mapping with the same
	// (tenant, digest) already exists. It returns the stored mapping and
	// whether this call created it: on a duplicate the existing mapping
	// comes back with created=false, making concurrent creates converge.
	Upsert(ctx context.Context, mapping *vault.Mapping) (stored *vault.Mapping, created bool, err error)

	// FindByDigest returns the live mapping for a lookup digest.
	FindByDigest(ctx context.Context, tenantID id.TenantID, digest string) (*vault.Mapping, error)

	// FindByPseudonym returns the live mapping for a pseudonym.
	FindByPseudonym(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*vault.Mapping, error)

	// SoftDelete marks the mapping deleted. Deleting an absent or already
	// deleted mapping is a no-op.
	SoftDelete(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, now time.Time) error
}
