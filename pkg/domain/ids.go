// Package domain holds shared value types used across the privacy core:
// typed identifiers, roles, and reason codes.
//
// Identifiers are distinct string types so the compiler rejects cross-type
// assignment (a TenantID can never be passed where a PseudonymID is expected).
// Construct them via the Parse functions at trust boundaries.
package domain

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "runadata/pkg/domain-errors"
)

type (
	// TenantID scopes every record in the core. Tenants are externally owned.
	TenantID string
	// UserID is the real identity protected by the vault.
	UserID string
	// CampaignID ties mappings and insights to an externally owned campaign.
	CampaignID string
	// SessionID identifies the originating session of a transcript or insight.
	SessionID string
	// TranscriptID identifies a conversation transcript.
	TranscriptID string
	// PseudonymID is the opaque identifier substituted for a real identity.
	// Format: "P-" followed by 8 uppercase hex characters.
	PseudonymID string
	// RequestID identifies a reidentification request (UUID string).
	RequestID string
)

var pseudonymPattern = regexp.MustCompile(`^P-[0-9A-F]{8}$`)

// NewPseudonymID generates an opaque pseudonym, e.g. "P-AB12CD34".
func NewPseudonymID() PseudonymID {
	u := uuid.New()
	return PseudonymID("P-" + strings.ToUpper(hex.EncodeToString(u[:4])))
}

// NewRequestID generates a fresh reidentification request ID.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// ParseTenantID validates external tenant input.
func ParseTenantID(s string) (TenantID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant id cannot be empty")
	}
	return TenantID(s), nil
}

// ParsePseudonymID validates the opaque pseudonym format.
func ParsePseudonymID(s string) (PseudonymID, error) {
	if !pseudonymPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed pseudonym id")
	}
	return PseudonymID(s), nil
}

// ParseRequestID validates a reidentification request ID.
func ParseRequestID(s string) (RequestID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed request id")
	}
	return RequestID(s), nil
}

func (t TenantID) String() string     { return string(t) }
func (u UserID) String() string       { return string(u) }
func (c CampaignID) String() string   { return string(c) }
func (s SessionID) String() string    { return string(s) }
func (t TranscriptID) String() string { return string(t) }
func (p PseudonymID) String() string  { return string(p) }
func (r RequestID) String() string    { return string(r) }
