package redaction

import (
	"time"

	id "runadata/pkg/domain"
)

// Speaker identifies who authored a transcript turn. Only participant turns
// are redacted; assistant and facilitator turns pass through untouched.
type Speaker string

const (
	SpeakerParticipant Speaker = "participant"
	SpeakerAssistant   Speaker = "assistant"
	SpeakerFacilitator Speaker = "facilitator"
)

// Message is one turn of a transcript.
type Message struct {
	Speaker Speaker `json:"speaker"`
	Content string  `json:"content"`
}

// Transcript is the conversation record owned by the session subsystem; this
// core only reads it for redaction input and writes back the redacted turns
// plus the pseudonymization stamps.
type Transcript struct {
	ID               id.TranscriptID
	TenantID         id.TenantID
	CampaignID       id.CampaignID
	SessionID        id.SessionID
	UserID           id.UserID
	Messages         []Message
	IsPseudonymized  bool
	PseudonymizedAt  *time.Time
	PseudonymID      id.PseudonymID
	UpdatedAt        time.Time
}

// Summary reports what a transcript pseudonymization did. Failed runs (guard
// tripped, transcript missing) come back with Success=false instead of an
// error so callers can distinguish "refused" from "broken".
type Summary struct {
	Success         bool
	Reason          string
	PseudonymID     id.PseudonymID
	RedactionCount  int
	DetectorTypes   []DetectorType
	// SkippedMessages indexes participant turns whose redaction failed and
	// were left untouched. Partial failure, not fatal.
	SkippedMessages []int
}
