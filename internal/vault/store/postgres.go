package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"runadata/internal/vault"
	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
	txcontext "runadata/pkg/platform/tx"
)

// PostgresStore persists mappings in the pseudonym_mappings table.
//
// Schema (migrations live with the deployment):
//
//	CREATE TABLE pseudonym_mappings (
//	    pseudonym_id        TEXT        NOT NULL,
//	    tenant_id           TEXT        NOT NULL,
//	    identity_ciphertext TEXT        NOT NULL,
//	    identity_digest     TEXT        NOT NULL,
//	    campaign_id         TEXT,
//	    is_deleted          BOOLEAN     NOT NULL DEFAULT FALSE,
//	    expires_at          TIMESTAMPTZ,
//	    created_at          TIMESTAMPTZ NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, pseudonym_id)
//	);
//	CREATE UNIQUE INDEX pseudonym_mappings_live_identity
//	    ON pseudonym_mappings (tenant_id, identity_digest)
//	    WHERE NOT is_deleted;
//
// The partial unique index is the arena that makes Upsert atomic: concurrent
// inserts for the same identity collide there instead of creating duplicates.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, mapping *vault.Mapping) (*vault.Mapping, bool, error) {
	q := txcontext.QuerierFrom(ctx, s.db)

	res, err := q.ExecContext(ctx, `
		INSERT INTO pseudonym_mappings
			(pseudonym_id, tenant_id, identity_ciphertext, identity_digest,
			 campaign_id, is_deleted, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), FALSE, $6, $7, $7)
		ON CONFLICT (tenant_id, identity_digest) WHERE NOT is_deleted
		DO NOTHING`,
		mapping.PseudonymID, mapping.TenantID, mapping.IdentityCiphertext,
		mapping.IdentityDigest, mapping.CampaignID, mapping.ExpiresAt, mapping.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert mapping: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert mapping: %w", err)
	}
	if inserted == 1 {
		return copyMapping(mapping), true, nil
	}

	// Lost the race (or the mapping predates us); return the live winner.
	existing, err := s.FindByDigest(ctx, mapping.TenantID, mapping.IdentityDigest)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) FindByDigest(ctx context.Context, tenantID id.TenantID, digest string) (*vault.Mapping, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT pseudonym_id, tenant_id, identity_ciphertext, identity_digest,
		       COALESCE(campaign_id, ''), is_deleted, expires_at, created_at, updated_at
		FROM pseudonym_mappings
		WHERE tenant_id = $1 AND identity_digest = $2 AND NOT is_deleted`,
		tenantID, digest,
	)
	return scanMapping(row)
}

func (s *PostgresStore) FindByPseudonym(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*vault.Mapping, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT pseudonym_id, tenant_id, identity_ciphertext, identity_digest,
		       COALESCE(campaign_id, ''), is_deleted, expires_at, created_at, updated_at
		FROM pseudonym_mappings
		WHERE tenant_id = $1 AND pseudonym_id = $2 AND NOT is_deleted`,
		tenantID, pseudonymID,
	)
	return scanMapping(row)
}

func (s *PostgresStore) SoftDelete(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID, now time.Time) error {
	q := txcontext.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx, `
		UPDATE pseudonym_mappings
		SET is_deleted = TRUE, updated_at = $3
		WHERE tenant_id = $1 AND pseudonym_id = $2 AND NOT is_deleted`,
		tenantID, pseudonymID, now,
	)
	if err != nil {
		return fmt.Errorf("soft delete mapping: %w", err)
	}
	return nil
}

func scanMapping(row *sql.Row) (*vault.Mapping, error) {
	var m vault.Mapping
	var expiresAt sql.NullTime
	err := row.Scan(
		&m.PseudonymID, &m.TenantID, &m.IdentityCiphertext, &m.IdentityDigest,
		&m.CampaignID, &m.IsDeleted, &expiresAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan mapping: %w", err)
	}
	if expiresAt.Valid {
		m.ExpiresAt = &expiresAt.Time
	}
	return &m, nil
}
