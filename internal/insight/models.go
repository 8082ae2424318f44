package insight

import (
	"time"

	id "runadata/pkg/domain"
	dErrors "runadata/pkg/domain-errors"
)

// InsightType distinguishes the analytical products derived from sessions.
type InsightType string

const (
	TypeTheme     InsightType = "theme"
	TypeHighlight InsightType = "highlight"
	TypeSummary   InsightType = "summary"
)

// Insight is an aggregated finding over one or more sessions. Insights whose
// contributing group is too small are suppressed rather than deleted so a
// later re-check can restore them.
type Insight struct {
	ID              string
	TenantID        id.TenantID
	CampaignID      id.CampaignID
	Type            InsightType
	CategoryID      string
	SourceSessionID id.SessionID
	Content         string
	IsSuppressed    bool
	UpdatedAt       time.Time
}

// Validate checks the fields required for suppression grouping.
func (i *Insight) Validate() error {
	if i.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "insight id is required")
	}
	if i.TenantID == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}
	if i.CampaignID == "" {
		return dErrors.New(dErrors.CodeValidation, "campaign id is required")
	}
	if i.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "insight type is required")
	}
	return nil
}

// groupKey identifies a suppression group within a campaign.
type groupKey struct {
	Type       InsightType
	CategoryID string
}

// CampaignRef names a campaign within a tenant for the periodic sweep.
type CampaignRef struct {
	TenantID   id.TenantID
	CampaignID id.CampaignID
}

// Result reports the outcome of a suppression sweep over a campaign.
type Result struct {
	GroupsChecked    int
	Suppressed       int
	Unsuppressed     int
	ZeroSourceGroups int
}
