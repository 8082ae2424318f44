package redaction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
	txcontext "runadata/pkg/platform/tx"
)

// PostgresTranscriptStore persists transcripts with the message set as JSONB.
//
//	CREATE TABLE transcripts (
//	    id               TEXT        NOT NULL,
//	    tenant_id        TEXT        NOT NULL,
//	    campaign_id      TEXT,
//	    session_id       TEXT        NOT NULL,
//	    user_id          TEXT        NOT NULL,
//	    messages         JSONB       NOT NULL,
//	    is_pseudonymized BOOLEAN     NOT NULL DEFAULT FALSE,
//	    pseudonymized_at TIMESTAMPTZ,
//	    pseudonym_id     TEXT,
//	    updated_at       TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, id)
//	);
type PostgresTranscriptStore struct {
	db *sql.DB
}

func NewPostgresTranscriptStore(db *sql.DB) *PostgresTranscriptStore {
	return &PostgresTranscriptStore{db: db}
}

func (s *PostgresTranscriptStore) FindByID(ctx context.Context, tenantID id.TenantID, transcriptID id.TranscriptID) (*Transcript, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	row := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(campaign_id, ''), session_id, user_id,
		       messages, is_pseudonymized, pseudonymized_at, COALESCE(pseudonym_id, ''), updated_at
		FROM transcripts
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, transcriptID,
	)

	var t Transcript
	var rawMessages []byte
	var pseudonymizedAt sql.NullTime
	err := row.Scan(
		&t.ID, &t.TenantID, &t.CampaignID, &t.SessionID, &t.UserID,
		&rawMessages, &t.IsPseudonymized, &pseudonymizedAt, &t.PseudonymID, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	if err := json.Unmarshal(rawMessages, &t.Messages); err != nil {
		return nil, fmt.Errorf("decode transcript messages: %w", err)
	}
	if pseudonymizedAt.Valid {
		t.PseudonymizedAt = &pseudonymizedAt.Time
	}
	return &t, nil
}

func (s *PostgresTranscriptStore) ListPending(ctx context.Context, limit int) ([]*Transcript, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, COALESCE(campaign_id, ''), session_id, user_id,
		       messages, is_pseudonymized, pseudonymized_at, COALESCE(pseudonym_id, ''), updated_at
		FROM transcripts
		WHERE NOT is_pseudonymized
		ORDER BY updated_at ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending transcripts: %w", err)
	}
	defer rows.Close()

	var out []*Transcript
	for rows.Next() {
		var t Transcript
		var rawMessages []byte
		var pseudonymizedAt sql.NullTime
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.CampaignID, &t.SessionID, &t.UserID,
			&rawMessages, &t.IsPseudonymized, &pseudonymizedAt, &t.PseudonymID, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		if err := json.Unmarshal(rawMessages, &t.Messages); err != nil {
			return nil, fmt.Errorf("decode transcript messages: %w", err)
		}
		if pseudonymizedAt.Valid {
			t.PseudonymizedAt = &pseudonymizedAt.Time
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending transcripts: %w", err)
	}
	return out, nil
}

func (s *PostgresTranscriptStore) Update(ctx context.Context, transcript *Transcript) error {
	rawMessages, err := json.Marshal(transcript.Messages)
	if err != nil {
		return fmt.Errorf("encode transcript messages: %w", err)
	}

	q := txcontext.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE transcripts
		SET messages = $3, is_pseudonymized = $4, pseudonymized_at = $5,
		    pseudonym_id = NULLIF($6, ''), updated_at = $7
		WHERE tenant_id = $1 AND id = $2`,
		transcript.TenantID, transcript.ID, rawMessages, transcript.IsPseudonymized,
		transcript.PseudonymizedAt, transcript.PseudonymID, transcript.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
