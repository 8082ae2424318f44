//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runadata/internal/reident"
	id "runadata/pkg/domain"
	"runadata/pkg/platform/sentinel"
	"runadata/pkg/testutil/containers"
)

const requestsSchema = `
CREATE TABLE reident_requests (
    id                 TEXT        NOT NULL,
    tenant_id          TEXT        NOT NULL,
    pseudonym_id       TEXT        NOT NULL,
    requester_id       TEXT        NOT NULL,
    reason             TEXT        NOT NULL,
    details            TEXT        NOT NULL DEFAULT '',
    status             TEXT        NOT NULL,
    first_approver_id  TEXT        NOT NULL DEFAULT '',
    first_approved_at  TIMESTAMPTZ,
    second_approver_id TEXT        NOT NULL DEFAULT '',
    second_approved_at TIMESTAMPTZ,
    rejected_by        TEXT        NOT NULL DEFAULT '',
    rejected_at        TIMESTAMPTZ,
    rejection_reason   TEXT        NOT NULL DEFAULT '',
    resolved_by        TEXT        NOT NULL DEFAULT '',
    resolved_at        TIMESTAMPTZ,
    created_at         TIMESTAMPTZ NOT NULL,
    expires_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE INDEX reident_requests_pseudonym
    ON reident_requests (tenant_id, pseudonym_id, status);`

func newRequest(t *testing.T, createdAt time.Time) *reident.Request {
	t.Helper()
	r, err := reident.NewRequest("acme", "P-AB12CD34", "requester-1",
		id.ReasonSafetyConcern, "", reident.DefaultRequestTTL, createdAt)
	require.NoError(t, err)
	return r
}

func TestPostgresStore_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, requestsSchema)
	store := NewPostgres(pg.DB)
	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	reset := func(t *testing.T) {
		t.Helper()
		require.NoError(t, pg.Truncate(ctx, "reident_requests"))
	}

	t.Run("create and load round-trip", func(t *testing.T) {
		reset(t)

		request := newRequest(t, base)
		require.NoError(t, store.Create(ctx, request))
		assert.ErrorIs(t, store.Create(ctx, request), sentinel.ErrConflict)

		loaded, err := store.FindByID(ctx, "acme", request.ID)
		require.NoError(t, err)
		assert.Equal(t, reident.StatusPending, loaded.Status)
		assert.Nil(t, loaded.FirstApprovedAt)
		assert.True(t, loaded.ExpiresAt.Equal(request.ExpiresAt))

		_, err = store.FindByID(ctx, "globex", request.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("transition guards the stored status", func(t *testing.T) {
		reset(t)

		request := newRequest(t, base)
		require.NoError(t, store.Create(ctx, request))

		updated, err := store.Transition(ctx, "acme", request.ID, reident.StatusPending, func(r *reident.Request) error {
			return r.ApplyFirstApproval("admin-1", id.RoleAdmin, base.Add(time.Minute))
		})
		require.NoError(t, err)
		assert.Equal(t, reident.StatusFirstApproved, updated.Status)
		require.NotNil(t, updated.FirstApprovedAt)

		// The same CAS again loses: the row is no longer pending.
		_, err = store.Transition(ctx, "acme", request.ID, reident.StatusPending, func(r *reident.Request) error {
			return r.ApplyFirstApproval("admin-2", id.RoleAdmin, base.Add(time.Minute))
		})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("find approved by pseudonym prefers the oldest", func(t *testing.T) {
		reset(t)

		approve := func(r *reident.Request) {
			t.Helper()
			require.NoError(t, store.Create(ctx, r))
			_, err := store.Transition(ctx, "acme", r.ID, reident.StatusPending, func(req *reident.Request) error {
				return req.ApplyFirstApproval("admin-1", id.RoleAdmin, r.CreatedAt)
			})
			require.NoError(t, err)
			_, err = store.Transition(ctx, "acme", r.ID, reident.StatusFirstApproved, func(req *reident.Request) error {
				return req.ApplySecondApproval("officer-1", id.RoleSecurityOfficer, r.CreatedAt)
			})
			require.NoError(t, err)
		}

		older := newRequest(t, base)
		newer := newRequest(t, base.Add(time.Hour))
		approve(newer)
		approve(older)

		found, err := store.FindApprovedByPseudonym(ctx, "acme", "P-AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, older.ID, found.ID)
	})

	t.Run("list by tenant with status filter", func(t *testing.T) {
		reset(t)

		pending := newRequest(t, base)
		rejected := newRequest(t, base.Add(time.Minute))
		require.NoError(t, store.Create(ctx, pending))
		require.NoError(t, store.Create(ctx, rejected))
		_, err := store.Transition(ctx, "acme", rejected.ID, reident.StatusPending, func(r *reident.Request) error {
			return r.ApplyRejection("admin-1", "duplicate", base.Add(2*time.Minute))
		})
		require.NoError(t, err)

		all, err := store.ListByTenant(ctx, "acme", "")
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, rejected.ID, all[0].ID, "newest first")

		onlyPending, err := store.ListByTenant(ctx, "acme", reident.StatusPending)
		require.NoError(t, err)
		require.Len(t, onlyPending, 1)
		assert.Equal(t, pending.ID, onlyPending[0].ID)
	})
}
