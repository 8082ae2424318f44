// Package redaction detects and replaces PII in free text and pseudonymizes
// whole transcripts exactly once.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"

	dErrors "runadata/pkg/domain-errors"
)

// DetectorType names a PII category.
type DetectorType string

const (
	DetectorEmail         DetectorType = "email"
	DetectorPhone         DetectorType = "phone"
	DetectorHonorificName DetectorType = "honorific_name"
	DetectorName          DetectorType = "name"
	DetectorNationalID    DetectorType = "national_id"
	DetectorDateOfBirth   DetectorType = "date_of_birth"
	DetectorAddress       DetectorType = "address"
)

// Record describes one redacted span. It carries only the detector type and a
// truncated one-way hash of the original, never the PII itself.
type Record struct {
	Detector DetectorType `json:"detector"`
	// OriginalHash is the first 8 hex chars of SHA-256(original). Enough to
	// correlate repeat occurrences in the audit trail, useless to invert.
	OriginalHash string `json:"original_hash"`
	Replacement  string `json:"replacement"`
}

type detector struct {
	kind    DetectorType
	label   string
	pattern *regexp.Regexp
}

// detectors run in order, each over the text as already modified by the
// previous categories. Order matters: emails are consumed before phones so a
// numeric local-part is not half-eaten, and separator-bearing phones go
// before the bare national-ID digit run.
var detectors = []detector{
	{DetectorEmail, "EMAIL",
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{DetectorPhone, "PHONE",
		regexp.MustCompile(`\b(?:\+?[0-9]{1,3}[-.\s])?(?:\([0-9]{2,3}\)[-.\s]?)?[0-9]{3,4}[-.\s][0-9]{3,4}\b`)},
	{DetectorHonorificName, "PERSON",
		regexp.MustCompile(`\b(?:Sr\.|Sra\.|Dr\.|Dra\.|Ing\.|Lic\.|Prof\.)\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+\b`)},
	{DetectorName, "PERSON",
		regexp.MustCompile(`\b[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?\b`)},
	{DetectorNationalID, "ID",
		regexp.MustCompile(`\b[0-9]{7,11}\b`)},
	{DetectorDateOfBirth, "DOB",
		regexp.MustCompile(`\b(?:0?[1-9]|[12][0-9]|3[01])[/-](?:0?[1-9]|1[012])[/-](?:19|20)?[0-9]{2}\b`)},
	{DetectorAddress, "ADDRESS",
		regexp.MustCompile(`\b(?:Calle|Av\.|Avenida|Carrera|Jr\.|Jirón)\s+[A-Za-z0-9áéíóúñÁÉÍÓÚÑ][A-Za-z0-9áéíóúñÁÉÍÓÚÑ\s,#.-]*`)},
}

// maxSpansPerDetector bounds a single detector pass. Hitting it means the
// input is adversarial or corrupt; the message is skipped rather than the
// whole transcript aborted.
const maxSpansPerDetector = 1000

// ReplacementToken builds the token a span is replaced with: the detector
// label plus 6 uppercase hex chars of SHA-256(original ‖ salt). The same span
// under the same salt always yields the same token, so repeated mentions stay
// linkable within a session without exposing the value.
func ReplacementToken(label, original, salt string) string {
	sum := sha256.Sum256([]byte(original + salt))
	return "[" + label + "-" + strings.ToUpper(hex.EncodeToString(sum[:3])) + "]"
}

func originalHash(original string) string {
	sum := sha256.Sum256([]byte(original))
	return hex.EncodeToString(sum[:4])
}

// PseudonymizeText replaces every detected PII span in text.
//
// Categories run sequentially: each pattern is matched against the text as
// already modified by the categories before it. PII-free input comes back
// unchanged with an empty record list.
func PseudonymizeText(text, salt string) (string, []Record, error) {
	if !utf8.ValidString(text) {
		return "", nil, dErrors.New(dErrors.CodeValidation, "text is not valid UTF-8")
	}

	result := text
	var records []Record
	for _, d := range detectors {
		var err error
		result, records, err = applyDetector(result, d, salt, records)
		if err != nil {
			return "", nil, err
		}
	}
	return result, records, nil
}

// applyDetector replaces every match of one detector, scanning left to right
// and never rescanning text it has already emitted, so a replacement token
// cannot be re-matched by the same detector.
func applyDetector(text string, d detector, salt string, records []Record) (string, []Record, error) {
	var b strings.Builder
	remaining := text
	for spans := 0; ; spans++ {
		loc := d.pattern.FindStringIndex(remaining)
		if loc == nil {
			break
		}
		if spans >= maxSpansPerDetector {
			return "", nil, dErrors.Newf(dErrors.CodeValidation,
				"too many %s spans in one message", d.kind)
		}
		original := remaining[loc[0]:loc[1]]
		token := ReplacementToken(d.label, original, salt)
		records = append(records, Record{
			Detector:     d.kind,
			OriginalHash: originalHash(original),
			Replacement:  token,
		})
		b.WriteString(remaining[:loc[0]])
		b.WriteString(token)
		remaining = remaining[loc[1]:]
	}
	if b.Len() == 0 {
		return remaining, records, nil
	}
	b.WriteString(remaining)
	return b.String(), records, nil
}
