package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"runadata/internal/reident"
	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
	txcontext "runadata/pkg/platform/tx"
)

// PostgresStore persists requests in the reident_requests table.
//
// Schema (migrations live with the deployment):
//
//	CREATE TABLE reident_requests (
//	    id                 TEXT        NOT NULL,
//	    tenant_id          TEXT        NOT NULL,
//	    pseudonym_id       TEXT        NOT NULL,
//	    requester_id       TEXT        NOT NULL,
//	    reason             TEXT        NOT NULL,
//	    details            TEXT        NOT NULL DEFAULT '',
//	    status             TEXT        NOT NULL,
//	    first_approver_id  TEXT        NOT NULL DEFAULT '',
//	    first_approved_at  TIMESTAMPTZ,
//	    second_approver_id TEXT        NOT NULL DEFAULT '',
//	    second_approved_at TIMESTAMPTZ,
//	    rejected_by        TEXT        NOT NULL DEFAULT '',
//	    rejected_at        TIMESTAMPTZ,
//	    rejection_reason   TEXT        NOT NULL DEFAULT '',
//	    resolved_by        TEXT        NOT NULL DEFAULT '',
//	    resolved_at        TIMESTAMPTZ,
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    expires_at         TIMESTAMPTZ NOT NULL,
//	    updated_at         TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, id)
//	);
//	CREATE INDEX reident_requests_pseudonym
//	    ON reident_requests (tenant_id, pseudonym_id, status);
//
// Transition guards its UPDATE with "status = from", so a lost race surfaces
// as zero affected rows rather than a silently overwritten decision.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `
	id, tenant_id, pseudonym_id, requester_id, reason, details, status,
	first_approver_id, first_approved_at, second_approver_id, second_approved_at,
	rejected_by, rejected_at, rejection_reason, resolved_by, resolved_at,
	created_at, expires_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, request *reident.Request) error {
	q := txcontext.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		INSERT INTO reident_requests
			(id, tenant_id, pseudonym_id, requester_id, reason, details, status,
			 created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, id) DO NOTHING`,
		request.ID, request.TenantID, request.PseudonymID, request.RequesterID,
		request.Reason, request.Details, request.Status,
		request.CreatedAt, request.ExpiresAt, request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	if inserted == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*reident.Request, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM reident_requests
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, requestID,
	)
	return scanRequest(row)
}

func (s *PostgresStore) FindApprovedByPseudonym(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*reident.Request, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM reident_requests
		WHERE tenant_id = $1 AND pseudonym_id = $2 AND status = $3
		ORDER BY created_at ASC
		LIMIT 1`,
		tenantID, pseudonymID, reident.StatusApproved,
	)
	return scanRequest(row)
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID id.TenantID, status reident.Status) ([]*reident.Request, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM reident_requests
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`,
		tenantID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*reident.Request
	for rows.Next() {
		r, err := scanRequestRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Transition(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, from reident.Status, mutate func(*reident.Request) error) (*reident.Request, error) {
	request, err := s.FindByID(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != from {
		return nil, sentinel.ErrConflict
	}
	if err := mutate(request); err != nil {
		return nil, err
	}

	q := txcontext.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE reident_requests
		SET status = $4,
		    first_approver_id = $5, first_approved_at = $6,
		    second_approver_id = $7, second_approved_at = $8,
		    rejected_by = $9, rejected_at = $10, rejection_reason = $11,
		    resolved_by = $12, resolved_at = $13,
		    updated_at = $14
		WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, requestID, from,
		request.Status,
		request.FirstApproverID, request.FirstApprovedAt,
		request.SecondApproverID, request.SecondApprovedAt,
		request.RejectedBy, request.RejectedAt, request.RejectionReason,
		request.ResolvedBy, request.ResolvedAt,
		request.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("transition request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition request: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrConflict
	}
	return request, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row *sql.Row) (*reident.Request, error) {
	r, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func scanRequestRows(rows *sql.Rows) (*reident.Request, error) {
	return scanInto(rows)
}

func scanInto(scanner rowScanner) (*reident.Request, error) {
	var r reident.Request
	var firstAt, secondAt, rejectedAt, resolvedAt sql.NullTime
	err := scanner.Scan(
		&r.ID, &r.TenantID, &r.PseudonymID, &r.RequesterID, &r.Reason, &r.Details, &r.Status,
		&r.FirstApproverID, &firstAt, &r.SecondApproverID, &secondAt,
		&r.RejectedBy, &rejectedAt, &r.RejectionReason, &r.ResolvedBy, &resolvedAt,
		&r.CreatedAt, &r.ExpiresAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	if firstAt.Valid {
		r.FirstApprovedAt = &firstAt.Time
	}
	if secondAt.Valid {
		r.SecondApprovedAt = &secondAt.Time
	}
	if rejectedAt.Valid {
		r.RejectedAt = &rejectedAt.Time
	}
	if resolvedAt.Valid {
		r.ResolvedAt = &resolvedAt.Time
	}
	return &r, nil
}
