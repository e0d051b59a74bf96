package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/common/database"
	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/lock"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/platform/platformtest"
	"membership-workflow/internal/store"
	"membership-workflow/pkg/registry"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ==========================
// Test Harness
// ==========================

var (
	reviewerB = platform.Principal{ID: "reviewer-b", Name: "B", Roles: []string{"recruiter"}}
	outsiderC = platform.Principal{ID: "user-c", Name: "C", Roles: []string{"member"}}
)

type recordingAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *recordingAlerter) Name() string { return "recording" }

func (a *recordingAlerter) Alert(ctx context.Context, subject, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subjects)
}

type harness struct {
	controller *Controller
	store      *store.SQLStore
	audit      *store.AuditLog
	platform   *platformtest.Fake
	dispatcher *dispatch.Dispatcher
	alerts     *recordingAlerter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	dbCfg := config.DatabaseConfig{
		Driver: database.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "applications.db")},
	}
	require.NoError(t, database.MigrateUp(dbCfg))
	client, err := database.NewSQLite(dbCfg.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	st := store.NewSQLStore(client.DB, log)
	audit := store.NewAuditLog(client.DB)
	fake := platformtest.New()
	alerts := &recordingAlerter{}

	d := dispatch.NewDispatcher(&dispatch.Config{
		ParentContainer: "applications",
		SpacePrefix:     "application",
		LogSpace:        "log-space",
		ReviewerRoles:   []string{"recruiter"},
		CallTimeout:     time.Second,
	}, fake, st, registry.Defaults(), log,
		dispatch.WithAuditSinks(audit),
		dispatch.WithAlerters(alerts),
	)
	t.Cleanup(d.Wait)

	c, err := NewController(&Config{
		TeardownDelay: 10 * time.Millisecond,
		CallTimeout:   time.Second,
	}, st, d, platform.NewRoleAuthorizer([]string{"recruiter"}, []string{"leader"}), log, opts...)
	require.NoError(t, err)

	return &harness{controller: c, store: st, audit: audit, platform: fake, dispatcher: d, alerts: alerts}
}

func submitRequest(submitterID string) SubmitRequest {
	return SubmitRequest{
		SubmitterID:          submitterID,
		SubmitterDisplayName: "Skeet " + submitterID,
		Form: models.ApplicationForm{
			ProfileName:    "Nyam 2253",
			BackgroundInfo: "Seth 20",
			HistoryNotes:   "Waker went inactive and kicked everyone",
			Motivation:     "Saw you on the market and in content",
		},
	}
}

func (h *harness) submit(t *testing.T, submitterID string) *models.Application {
	t.Helper()
	app, err := h.controller.Submit(context.Background(), submitRequest(submitterID))
	require.NoError(t, err)
	return app
}

// ==========================
// Submit
// ==========================

func TestSubmit_CreatesPendingApplicationWithSpace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app := h.submit(t, "A")
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, models.PriorIncidentsDefault, app.PriorIncidents)
	require.NotEmpty(t, app.DiscussionSpaceRef)
	require.NotEmpty(t, app.ReviewMessageRef)

	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.DiscussionSpaceRef, stored.DiscussionSpaceRef)
	assert.Equal(t, app.ReviewMessageRef, stored.ReviewMessageRef)
	assert.Equal(t, "Nyam 2253", stored.ProfileName)
	assert.Equal(t, "Seth 20", stored.BackgroundInfo)

	spec, ok := h.platform.Spec(app.DiscussionSpaceRef)
	require.True(t, ok)
	assert.Equal(t, "applications", spec.ParentRef)
	assert.Equal(t, []string{"A"}, spec.ViewerUsers)

	posts := h.platform.PostsTo(app.DiscussionSpaceRef)
	require.Len(t, posts, 1)
	assert.Len(t, posts[0].Message.Actions, 3)
	assert.Zero(t, h.alerts.count())
}

func TestSubmit_SecondSubmissionIsDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.submit(t, "A")

	_, err := h.controller.Submit(ctx, submitRequest("A"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicate))
	assert.Contains(t, err.Error(), first.ID)

	apps, err := h.store.FindBySubmitter(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, apps, 1)
	assert.Equal(t, 1, h.platform.CreateCalls(), "no side effects for the duplicate")
}

func TestSubmit_ConcurrentSubmissionsKeepOnePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var created, duplicates int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 12; i++ {
		g.Go(func() error {
			_, err := h.controller.Submit(gctx, submitRequest("A"))
			switch {
			case err == nil:
				atomic.AddInt32(&created, 1)
			case errors.Is(err, apperrors.ErrDuplicate):
				atomic.AddInt32(&duplicates, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(11), duplicates)

	pending, err := h.store.FindByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 1, h.platform.CreateCalls())
}

func TestSubmit_ValidationHasNoSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *SubmitRequest)
		field  string
	}{
		{name: "blank profile name", mutate: func(r *SubmitRequest) { r.Form.ProfileName = "   " }, field: "profileName"},
		{name: "motivation too long", mutate: func(r *SubmitRequest) { r.Form.Motivation = strings.Repeat("m", 1001) }, field: "motivation"},
		{name: "prior incidents too long", mutate: func(r *SubmitRequest) { r.Form.PriorIncidents = strings.Repeat("p", 2001) }, field: "priorIncidents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitRequest("A")
			tt.mutate(&req)

			_, err := h.controller.Submit(ctx, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
			stdErr, _ := apperrors.AsStandardError(err)
			assert.Contains(t, stdErr.Metadata, tt.field)
		})
	}

	_, err := h.controller.Submit(ctx, SubmitRequest{Form: submitRequest("A").Form})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	apps, err := h.store.FindBySubmitter(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, apps)
	assert.Zero(t, h.platform.CreateCalls())
}

func TestSubmit_SpaceFailureKeepsRecordPending(t *testing.T) {
	h := newHarness(t)
	h.platform.CreateSpaceErr = errors.New("missing permission")

	app, err := h.controller.Submit(context.Background(), submitRequest("A"))
	require.NoError(t, err)
	assert.Empty(t, app.DiscussionSpaceRef)

	stored, err := h.store.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, stored.DiscussionSpaceRef)
	assert.Equal(t, 1, h.alerts.count())
}

func TestSubmit_PromptFailureKeepsSpaceRef(t *testing.T) {
	h := newHarness(t)
	h.platform.PostMessageErr = errors.New("rate limited")

	app, err := h.controller.Submit(context.Background(), submitRequest("A"))
	require.NoError(t, err)

	stored, err := h.store.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.DiscussionSpaceRef)
	assert.Empty(t, stored.ReviewMessageRef)
	assert.Equal(t, 1, h.alerts.count())
}

// ==========================
// Decide
// ==========================

func TestDecide_ApproveNotifiesAndAuditsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	decided, err := h.controller.Decide(ctx, DecideRequest{
		ApplicationID: app.ID,
		Reviewer:      reviewerB,
		Decision:      models.DecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, decided.Status)
	assert.Equal(t, "B", decided.ReviewerName)
	assert.Empty(t, decided.RejectionReason)

	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, "B", stored.ReviewerName)
	assert.NotEmpty(t, stored.AuditMessageRef)

	notices := h.platform.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "A", notices[0].UserID)

	assert.Len(t, h.platform.PostsTo("log-space"), 1)
	entries, err := h.audit.ForApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, []string{app.ReviewMessageRef}, h.platform.Cleared())
	h.dispatcher.Wait()
	assert.Equal(t, []string{app.DiscussionSpaceRef}, h.platform.Deleted())
}

func TestDecide_SecondDecisionIsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	req := DecideRequest{ApplicationID: app.ID, Reviewer: reviewerB, Decision: models.DecisionApproved}
	_, err := h.controller.Decide(ctx, req)
	require.NoError(t, err)

	req.Decision = models.DecisionRejected
	req.Reason = "changed my mind"
	_, err = h.controller.Decide(ctx, req)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Len(t, h.platform.Notices(), 1)
}

func runConcurrentDecisions(t *testing.T, h *harness, app *models.Application) {
	t.Helper()
	var wins, conflicts int32
	g, gctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		req := DecideRequest{
			ApplicationID: app.ID,
			Reviewer:      platform.Principal{ID: fmt.Sprintf("rev-%d", i), Name: fmt.Sprintf("R%d", i), Roles: []string{"recruiter"}},
			Decision:      models.DecisionApproved,
		}
		if i%2 == 1 {
			req.Decision = models.DecisionRejected
			req.Reason = "movement"
		}
		g.Go(func() error {
			_, err := h.controller.Decide(gctx, req)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, apperrors.ErrInvalidTransition):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(7), conflicts)
	assert.Len(t, h.platform.Notices(), 1)
	assert.Len(t, h.platform.PostsTo("log-space"), 1)
}

func TestDecide_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	runConcurrentDecisions(t, h, h.submit(t, "A"))
}

func TestDecide_ConcurrentDecisionsWithRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := lock.NewRedisLocker(client, logger.NewTestLogger(t), lock.WithRetryBackoff(time.Millisecond))
	h := newHarness(t, WithLocker(locker))
	runConcurrentDecisions(t, h, h.submit(t, "A"))
}

func TestDecide_RejectRequiresReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	for _, reason := range []string{"", "   ", strings.Repeat("r", models.MaxRejectionReasonLength+1)} {
		_, err := h.controller.Decide(ctx, DecideRequest{
			ApplicationID: app.ID,
			Reviewer:      reviewerB,
			Decision:      models.DecisionRejected,
			Reason:        reason,
		})
		assert.True(t, errors.Is(err, apperrors.ErrValidation))
	}

	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, h.platform.Notices())
}

func TestDecide_RejectWithReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	decided, err := h.controller.Decide(ctx, DecideRequest{
		ApplicationID: app.ID,
		Reviewer:      reviewerB,
		Decision:      models.DecisionRejected,
		Reason:        "  shooting movement  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "shooting movement", decided.RejectionReason)

	notices := h.platform.Notices()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message.Content, "shooting movement")

	// The submitter may apply again once the previous application is resolved.
	_, err = h.controller.Submit(ctx, submitRequest("A"))
	assert.NoError(t, err)
}

func TestDecide_NonReviewerIsDenied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	_, err := h.controller.Decide(ctx, DecideRequest{
		ApplicationID: app.ID,
		Reviewer:      outsiderC,
		Decision:      models.DecisionApproved,
	})
	assert.True(t, errors.Is(err, apperrors.ErrAuthorization))

	_, err = h.controller.Decide(ctx, DecideRequest{
		ApplicationID: app.ID,
		Reviewer:      outsiderC,
		Decision:      "maybe",
	})
	assert.True(t, errors.Is(err, apperrors.ErrAuthorization), "authorization is checked before the decision value")

	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Empty(t, h.platform.Notices())
}

func TestDecide_UnknownApplicationAndDecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.controller.Decide(ctx, DecideRequest{ApplicationID: "missing", Reviewer: reviewerB, Decision: models.DecisionApproved})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = h.controller.Decide(ctx, DecideRequest{ApplicationID: "missing", Reviewer: reviewerB, Decision: "maybe"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestDecide_LockReleasedBeforeNotifications(t *testing.T) {
	locker := lock.NewLocalLocker()
	h := newHarness(t, WithLocker(locker))
	ctx := context.Background()
	app := h.submit(t, "A")

	var freeDuringNotify atomic.Bool
	h.platform.SetErr(func(f *platformtest.Fake) {
		f.NotifyHook = func(string) {
			tryCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			release, err := locker.Acquire(tryCtx, "decide:"+app.ID)
			if err == nil {
				freeDuringNotify.Store(true)
				release()
			}
		}
	})

	_, err := h.controller.Decide(ctx, DecideRequest{ApplicationID: app.ID, Reviewer: reviewerB, Decision: models.DecisionApproved})
	require.NoError(t, err)
	require.Len(t, h.platform.Notices(), 1)
	assert.True(t, freeDuringNotify.Load())
}

func TestDecide_SideEffectFailuresDoNotUndoDecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	h.platform.SetErr(func(f *platformtest.Fake) {
		f.NotifyErr = errors.New("direct messages closed")
		f.PostMessageErr = errors.New("log space gone")
		f.DeleteSpaceErr = errors.New("missing permission")
	})

	decided, err := h.controller.Decide(ctx, DecideRequest{ApplicationID: app.ID, Reviewer: reviewerB, Decision: models.DecisionApproved})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, decided.Status)

	h.dispatcher.Wait()
	stored, err := h.store.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)

	entries, err := h.audit.ForApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the SQL audit sink still records the decision")
}

// ==========================
// Claim and Queries
// ==========================

func TestClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	app := h.submit(t, "A")

	_, err := h.controller.Claim(ctx, ClaimRequest{ApplicationID: app.ID, Reviewer: outsiderC})
	assert.True(t, errors.Is(err, apperrors.ErrAuthorization))

	claimed, err := h.controller.Claim(ctx, ClaimRequest{ApplicationID: app.ID, Reviewer: reviewerB})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, claimed.Status)

	posts := h.platform.PostsTo(app.DiscussionSpaceRef)
	require.Len(t, posts, 2)
	assert.Contains(t, posts[1].Message.Content, "<@reviewer-b>")

	_, err = h.controller.Decide(ctx, DecideRequest{ApplicationID: app.ID, Reviewer: reviewerB, Decision: models.DecisionApproved})
	require.NoError(t, err)

	_, err = h.controller.Claim(ctx, ClaimRequest{ApplicationID: app.ID, Reviewer: reviewerB})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestListPendingAndBySubmitter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.submit(t, "A")
	h.submit(t, "B")
	_, err := h.controller.Decide(ctx, DecideRequest{ApplicationID: a.ID, Reviewer: reviewerB, Decision: models.DecisionApproved})
	require.NoError(t, err)

	pending, err := h.controller.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "B", pending[0].SubmitterID)

	mine, err := h.controller.ListBySubmitter(ctx, "A")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.StatusApproved, mine[0].Status)
}
