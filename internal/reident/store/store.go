// Package store persists reidentification requests. Status transitions go
// through the compare-and-swap Transition method so concurrent approvals,
// rejections, and resolutions serialize on the stored status.
package store

import (
	"context"

	"runadata/internal/reident"
	id "runadata/pkg/domain"
)

// Store is the persistence contract for reidentification requests.
type Store interface {
	// Create inserts a new request.
	// Returns sentinel.ErrConflict when the ID already exists.
	Create(ctx context.Context, request *reident.Request) error

	// FindByID loads a request.
	// Returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, tenantID id.TenantID, requestID id.RequestID) (*reident.Request, error)

	// FindApprovedByPseudonym returns the oldest request in approved status
	// for the pseudonym, or sentinel.ErrNotFound.
	FindApprovedByPseudonym(ctx context.Context, tenantID id.TenantID, pseudonymID id.PseudonymID) (*reident.Request, error)

	// ListByTenant returns the tenant's requests, optionally filtered by
	// status (empty status means all), newest first.
	ListByTenant(ctx context.Context, tenantID id.TenantID, status reident.Status) ([]*reident.Request, error)

	// Transition applies mutate to the request only if its stored status
	// still equals from, and persists the result atomically. Returns the
	// updated request, sentinel.ErrNotFound when absent, or
	// sentinel.ErrConflict when the status moved underneath the caller.
	// Errors returned by mutate abort the transition and pass through.
	Transition(ctx context.Context, tenantID id.TenantID, requestID id.RequestID, from reident.Status, mutate func(*reident.Request) error) (*reident.Request, error)
}
