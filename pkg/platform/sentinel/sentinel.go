package sentinel

import "errors"

// Sentinel errors for store-level facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist (or is soft-deleted)
// - ErrConflict: unique constraint hit or compare-and-swap lost
//
// For input validation use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
