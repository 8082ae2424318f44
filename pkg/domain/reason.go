package domain

import dErrors "runadata/pkg/domain-errors"

// ReasonCode states why a reidentification is being requested.
//
// Invariant: the value must be one of the enumerated codes. Construct via
// ParseReasonCode at trust boundaries; direct casting bypasses validation.
type ReasonCode string

const (
	ReasonSafetyConcern   ReasonCode = "safety_concern"
	ReasonLegalCompliance ReasonCode = "legal_compliance"
	ReasonExplicitConsent ReasonCode = "explicit_consent"
	ReasonDataCorrection  ReasonCode = "data_correction"
)

// validReasonCodes is the single source of truth for accepted codes.
var validReasonCodes = map[ReasonCode]bool{
	ReasonSafetyConcern:   true,
	ReasonLegalCompliance: true,
	ReasonExplicitConsent: true,
	ReasonDataCorrection:  true,
}

// ParseReasonCode constructs a ReasonCode from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseReasonCode(s string) (ReasonCode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "reason code cannot be empty")
	}
	c := ReasonCode(s)
	if !validReasonCodes[c] {
		return "", dErrors.New(dErrors.CodeValidation, "unknown reason code: "+s)
	}
	return c, nil
}

// IsValid checks if the reason code is one of the supported enum values.
func (c ReasonCode) IsValid() bool { return validReasonCodes[c] }

func (c ReasonCode) String() string { return string(c) }
