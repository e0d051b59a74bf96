// internal/workers/operator/cleanup-spaces/handler_test.go
package cleanupspaces

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/platform/platformtest"
	"membership-workflow/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

var (
	now      = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	operator = platform.Principal{ID: "op-1", Roles: []string{"leader"}}
)

type pendingFunc func(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)

func (f pendingFunc) FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	return f(ctx, status)
}

func pendingWithSpace(refs ...string) PendingSource {
	return pendingFunc(func(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
		apps := make([]*models.Application, 0, len(refs))
		for _, ref := range refs {
			apps = append(apps, &models.Application{ID: "app-" + ref, Status: status, DiscussionSpaceRef: ref})
		}
		return apps, nil
	})
}

func seedSpaces(fake *platformtest.Fake) {
	fake.AddSpace(platform.Space{Ref: "old", Name: "application-old", ParentRef: "applications", CreatedAt: now.AddDate(0, 0, -60)})
	fake.AddSpace(platform.Space{Ref: "old-pending", Name: "application-waiting", ParentRef: "applications", CreatedAt: now.AddDate(0, 0, -60)})
	fake.AddSpace(platform.Space{Ref: "recent", Name: "application-recent", ParentRef: "applications", CreatedAt: now.AddDate(0, 0, -5)})
	fake.AddSpace(platform.Space{Ref: "undated", Name: "application-undated", ParentRef: "applications"})
	fake.AddSpace(platform.Space{Ref: "general", Name: "general", ParentRef: "community", CreatedAt: now.AddDate(-1, 0, 0)})
}

func newTestHandler(t *testing.T, fake *platformtest.Fake, pending PendingSource) *Handler {
	return NewHandler(
		&Config{Timeout: time.Second, ParentContainer: "applications", MaxAgeDays: 30},
		fake,
		pending,
		platform.NewRoleAuthorizer([]string{"recruiter"}, []string{"leader"}),
		registry.Defaults(),
		logger.NewTestLogger(t),
		WithClock(func() time.Time { return now }),
	)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_DeletesOldSpaces(t *testing.T) {
	fake := platformtest.New()
	seedSpaces(fake)

	output, err := newTestHandler(t, fake, pendingWithSpace("old-pending")).
		Execute(context.Background(), &Input{Actor: operator})

	require.NoError(t, err)
	assert.Equal(t, 1, output.Deleted)
	assert.Equal(t, 0, output.Failed)
	assert.Equal(t, 3, output.Skipped)
	assert.Equal(t, []string{"old"}, output.DeletedRefs)
	assert.Equal(t, "✅ Deleted 1 old application spaces.", output.Message)
	assert.Equal(t, []string{"old"}, fake.Deleted())
}

func TestHandler_Execute_MaxAgeOverride(t *testing.T) {
	fake := platformtest.New()
	seedSpaces(fake)

	output, err := newTestHandler(t, fake, pendingWithSpace()).
		Execute(context.Background(), &Input{Actor: operator, MaxAgeDays: 3})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old", "old-pending", "recent"}, output.DeletedRefs)
	assert.Equal(t, 1, output.Skipped)
}

func TestHandler_Sweep_NoActor(t *testing.T) {
	fake := platformtest.New()
	seedSpaces(fake)

	output, err := newTestHandler(t, fake, pendingWithSpace()).Sweep(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 2, output.Deleted)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RequiresOperator(t *testing.T) {
	fake := platformtest.New()
	seedSpaces(fake)

	_, err := newTestHandler(t, fake, pendingWithSpace()).
		Execute(context.Background(), &Input{Actor: platform.Principal{ID: "user-1"}})

	assert.ErrorIs(t, err, apperrors.ErrAuthorization)
	assert.Empty(t, fake.Deleted())
}

func TestHandler_Execute_DeleteFailuresAreCounted(t *testing.T) {
	fake := platformtest.New()
	seedSpaces(fake)
	fake.DeleteSpaceErr = errors.New("missing permission")

	output, err := newTestHandler(t, fake, pendingWithSpace()).Execute(context.Background(), &Input{Actor: operator})

	require.NoError(t, err)
	assert.Equal(t, 0, output.Deleted)
	assert.Equal(t, 2, output.Failed)
}

func TestHandler_Execute_PendingLookupFails(t *testing.T) {
	fake := platformtest.New()
	failing := pendingFunc(func(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
		return nil, apperrors.NewPersistenceError("find by status", assert.AnError)
	})

	_, err := newTestHandler(t, fake, failing).Execute(context.Background(), &Input{Actor: operator})

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}
