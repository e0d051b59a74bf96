// internal/workers/operator/list-applications/handler_test.go
package listapplications

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Store
// ==========================

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.ApplicationStatus]int), args.Error(1)
}

func (m *MockStore) FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Application), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

var operator = platform.Principal{ID: "op-1", Roles: []string{"leader"}}

func pendingApplications(n int) []*models.Application {
	base := time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)
	apps := make([]*models.Application, 0, n)
	for i := 0; i < n; i++ {
		app := &models.Application{
			ID:          fmt.Sprintf("app-%d", i),
			SubmitterID: fmt.Sprintf("user-%d", i),
			ProfileName: fmt.Sprintf("Profile %d", i),
			Status:      models.StatusPending,
			CreatedAt:   base.Add(-time.Duration(i) * time.Hour),
		}
		if i%2 == 0 {
			app.DiscussionSpaceRef = fmt.Sprintf("space-%d", i)
		}
		apps = append(apps, app)
	}
	return apps
}

func newTestHandler(t *testing.T, st Store) *Handler {
	return NewHandler(
		&Config{Timeout: time.Second},
		st,
		platform.NewRoleAuthorizer([]string{"recruiter"}, []string{"leader"}),
		registry.Defaults(),
		logger.NewTestLogger(t),
	)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	st := new(MockStore)
	st.On("CountByStatus", mock.Anything).Return(map[models.ApplicationStatus]int{
		models.StatusPending:  7,
		models.StatusApproved: 3,
		models.StatusRejected: 2,
	}, nil)
	st.On("FindByStatus", mock.Anything, models.StatusPending).Return(pendingApplications(7), nil)

	output, err := newTestHandler(t, st).Execute(context.Background(), &Input{Actor: operator})

	require.NoError(t, err)
	assert.Equal(t, "📋 Active applications", output.Title)
	assert.Equal(t, 7, output.Pending)
	assert.Equal(t, 3, output.Approved)
	assert.Equal(t, 2, output.Rejected)
	require.Len(t, output.Recent, 5)
	assert.Equal(t, Entry{
		ApplicationID: "app-0",
		SubmitterID:   "user-0",
		ProfileName:   "Profile 0",
		Space:         "<#space-0>",
		SubmittedAt:   "01.05.2025 18:30",
	}, output.Recent[0])
	assert.Equal(t, "no discussion space", output.Recent[1].Space)
	st.AssertExpectations(t)
}

func TestHandler_Execute_Empty(t *testing.T) {
	st := new(MockStore)
	st.On("CountByStatus", mock.Anything).Return(map[models.ApplicationStatus]int{}, nil)
	st.On("FindByStatus", mock.Anything, models.StatusPending).Return([]*models.Application{}, nil)

	output, err := newTestHandler(t, st).Execute(context.Background(), &Input{Actor: operator})

	require.NoError(t, err)
	assert.Zero(t, output.Pending)
	assert.Empty(t, output.Recent)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RequiresOperator(t *testing.T) {
	st := new(MockStore)

	_, err := newTestHandler(t, st).Execute(context.Background(), &Input{Actor: platform.Principal{ID: "user-1"}})

	assert.ErrorIs(t, err, apperrors.ErrAuthorization)
	st.AssertNotCalled(t, "CountByStatus", mock.Anything)
}

func TestHandler_Execute_StoreFailure(t *testing.T) {
	st := new(MockStore)
	st.On("CountByStatus", mock.Anything).Return(nil, apperrors.NewPersistenceError("count by status", assert.AnError))

	_, err := newTestHandler(t, st).Execute(context.Background(), &Input{Actor: operator})

	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}
