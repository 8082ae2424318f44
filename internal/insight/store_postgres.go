package insight

import (
	"context"
	"database/sql"
	"fmt"

	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
	txcontext "runadata/pkg/platform/tx"
)

// PostgresStore persists insights in the insights table.
//
// Schema (migrations live with the deployment):
//
//	CREATE TABLE insights (
//	    id                TEXT        NOT NULL,
//	    tenant_id         TEXT        NOT NULL,
//	    campaign_id       TEXT        NOT NULL,
//	    insight_type      TEXT        NOT NULL,
//	    category_id       TEXT        NOT NULL DEFAULT '',
//	    source_session_id TEXT        NOT NULL DEFAULT '',
//	    content           TEXT        NOT NULL,
//	    is_suppressed     BOOLEAN     NOT NULL DEFAULT FALSE,
//	    updated_at        TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (tenant_id, id)
//	);
//	CREATE INDEX insights_campaign ON insights (tenant_id, campaign_id);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListByCampaign(ctx context.Context, tenantID id.TenantID, campaignID id.CampaignID) ([]*Insight, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, campaign_id, insight_type, category_id,
		       source_session_id, content, is_suppressed, updated_at
		FROM insights
		WHERE tenant_id = $1 AND campaign_id = $2`,
		tenantID, campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	var out []*Insight
	for rows.Next() {
		var in Insight
		if err := rows.Scan(
			&in.ID, &in.TenantID, &in.CampaignID, &in.Type, &in.CategoryID,
			&in.SourceSessionID, &in.Content, &in.IsSuppressed, &in.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Campaigns(ctx context.Context) ([]CampaignRef, error) {
	q := txcontext.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT tenant_id, campaign_id FROM insights`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []CampaignRef
	for rows.Next() {
		var ref CampaignRef
		if err := rows.Scan(&ref.TenantID, &ref.CampaignID); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetSuppressed(ctx context.Context, tenantID id.TenantID, insightID string, suppressed bool) error {
	q := txcontext.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, `
		UPDATE insights
		SET is_suppressed = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, insightID, suppressed,
	)
	if err != nil {
		return fmt.Errorf("set suppressed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set suppressed: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
