package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/common/database"
	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/lifecycle"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/platform/platformtest"
	"membership-workflow/internal/store"
	claimapplication "membership-workflow/internal/workers/application/claim-application"
	decideapplication "membership-workflow/internal/workers/application/decide-application"
	submitapplication "membership-workflow/internal/workers/application/submit-application"
	cleanupspaces "membership-workflow/internal/workers/operator/cleanup-spaces"
	deletespace "membership-workflow/internal/workers/operator/delete-space"
	healthcheck "membership-workflow/internal/workers/operator/health-check"
	listapplications "membership-workflow/internal/workers/operator/list-applications"
	postpanel "membership-workflow/internal/workers/operator/post-panel"
	querystatus "membership-workflow/internal/workers/operator/query-status"
	"membership-workflow/pkg/registry"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Harness
// ==========================

const testSecret = "test-secret"

var (
	applicant = platform.Principal{ID: "user-a", Name: "Skeet", Roles: []string{"member"}}
	reviewer  = platform.Principal{ID: "reviewer-b", Name: "B", Roles: []string{"recruiter"}}
	leader    = platform.Principal{ID: "leader-c", Name: "C", Roles: []string{"leader"}}
)

type testServer struct {
	url      string
	platform *platformtest.Fake
	store    *store.SQLStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.NewTestLogger(t)

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: database.DriverSQLite,
			SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "applications.db")},
		},
		Platform: config.PlatformConfig{ParentContainer: "applications", SpacePrefix: "application", LogSpace: "log-space"},
		Cleanup:  config.CleanupConfig{MaxAgeDays: 30},
	}
	require.NoError(t, database.MigrateUp(cfg.Database))
	client, err := database.NewSQLite(cfg.Database.SQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	st := store.NewSQLStore(client.DB, log)
	fake := platformtest.New()
	templates := registry.Defaults()
	authorizer := platform.NewRoleAuthorizer([]string{"recruiter"}, []string{"leader"})

	d := dispatch.NewDispatcher(&dispatch.Config{
		ParentContainer: cfg.Platform.ParentContainer,
		SpacePrefix:     cfg.Platform.SpacePrefix,
		LogSpace:        cfg.Platform.LogSpace,
		ReviewerRoles:   []string{"recruiter"},
		CallTimeout:     time.Second,
	}, fake, st, templates, log, dispatch.WithAuditSinks(store.NewAuditLog(client.DB)))
	t.Cleanup(d.Wait)

	controller, err := lifecycle.NewController(&lifecycle.Config{
		TeardownDelay: 10 * time.Millisecond,
		CallTimeout:   time.Second,
	}, st, d, authorizer, log)
	require.NoError(t, err)

	handler, err := New(Config{
		BasePath:  "/v1",
		JWTSecret: testSecret,
		Handlers: Handlers{
			Submit:      submitapplication.NewHandler(submitapplication.LoadConfig(cfg), controller, templates, log),
			Decide:      decideapplication.NewHandler(decideapplication.LoadConfig(cfg), controller, log),
			Claim:       claimapplication.NewHandler(claimapplication.LoadConfig(cfg), controller, log),
			PostPanel:   postpanel.NewHandler(postpanel.LoadConfig(cfg), fake, authorizer, templates, log),
			List:        listapplications.NewHandler(listapplications.LoadConfig(cfg), st, authorizer, templates, log),
			Cleanup:     cleanupspaces.NewHandler(cleanupspaces.LoadConfig(cfg), fake, st, authorizer, templates, log),
			QueryStatus: querystatus.NewHandler(querystatus.LoadConfig(cfg), st, authorizer, templates, log),
			DeleteSpace: deletespace.NewHandler(deletespace.LoadConfig(cfg), fake, authorizer, templates, log),
			HealthCheck: healthcheck.NewHandler(healthcheck.LoadConfig(cfg), st, fake, authorizer, templates, log),
		},
		Applications: st,
		Authorizer:   authorizer,
		Ready:        st,
		Logger:       log,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, platform: fake, store: st}
}

func signToken(t *testing.T, p platform.Principal, secret string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  p.Name,
		Roles: p.Roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func (s *testServer) submit(t *testing.T, p platform.Principal) SubmissionResponse {
	t.Helper()
	var out SubmissionResponse
	status := s.do(t, http.MethodPost, "/v1/applications", signToken(t, p, testSecret), validSubmission(), &out)
	require.Equal(t, http.StatusCreated, status)
	return out
}

func validSubmission() SubmissionRequest {
	return SubmissionRequest{
		ProfileName:    "Nyam 2253",
		BackgroundInfo: "Seth 20",
		HistoryNotes:   "Waker went inactive and kicked everyone",
		Motivation:     "Saw you on the market and in content",
	}
}

// ==========================
// Public Endpoints
// ==========================

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	var health struct {
		Status string `json:"status"`
	}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/v1/health", "", nil, &health))
	assert.Equal(t, "ok", health.Status)

	var ready struct {
		Status string `json:"status"`
	}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/ready", "", nil, &ready))
	assert.Equal(t, "ready", ready.Status)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil, nil))
}

// ==========================
// Authentication
// ==========================

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong secret", token: signToken(t, applicant, "other-secret")},
		{name: "garbage", token: "not-a-jwt"},
		{name: "no subject", token: signToken(t, platform.Principal{Name: "anonymous"}, testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env errorEnvelope
			status := s.do(t, http.MethodGet, "/v1/commands/status", tt.token, nil, &env)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, codeUnauthenticated, env.Error.Code)
		})
	}
}

// ==========================
// Submission
// ==========================

func TestSubmitApplication(t *testing.T) {
	s := newTestServer(t)

	out := s.submit(t, applicant)
	assert.NotEmpty(t, out.ApplicationID)
	assert.Equal(t, "pending", out.Status)
	assert.NotEmpty(t, out.DiscussionSpaceRef)
	assert.Contains(t, out.Notice, platform.SpaceMention(out.DiscussionSpaceRef))

	t.Run("second submission conflicts", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/applications", signToken(t, applicant, testSecret), validSubmission(), &env)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "DUPLICATE_APPLICATION", env.Error.Code)
		assert.Contains(t, env.Error.Message, "already have an application")
		assert.Equal(t, 1, s.platform.CreateCalls())
	})

	t.Run("empty fields are rejected without side effects", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/applications", signToken(t, reviewer, testSecret), SubmissionRequest{}, &env)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		assert.Equal(t, 1, s.platform.CreateCalls())
	})
}

// ==========================
// Decisions
// ==========================

func TestDecideApplication(t *testing.T) {
	s := newTestServer(t)
	app := s.submit(t, applicant)
	path := "/v1/applications/" + app.ApplicationID + "/decision"

	t.Run("non reviewer is forbidden", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, path, signToken(t, applicant, testSecret), DecisionRequest{Decision: "approved"}, &env)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "AUTHORIZATION_DENIED", env.Error.Code)
	})

	t.Run("unknown decision is a bad request", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, path, signToken(t, reviewer, testSecret), DecisionRequest{Decision: "maybe"}, &env)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown application", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/applications/missing/decision", signToken(t, reviewer, testSecret), DecisionRequest{Decision: "approved"}, &env)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	var out DecisionResponse
	status := s.do(t, http.MethodPost, path, signToken(t, reviewer, testSecret), DecisionRequest{Decision: "approved"}, &out)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "B", out.ReviewerName)

	t.Run("second decision conflicts", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, path, signToken(t, reviewer, testSecret), DecisionRequest{Decision: "rejected", Reason: "late"}, &env)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
	})

	assert.Len(t, s.platform.Notices(), 1)
}

// ==========================
// Interactions
// ==========================

func TestInteractions(t *testing.T) {
	s := newTestServer(t)
	app := s.submit(t, applicant)
	token := signToken(t, reviewer, testSecret)

	t.Run("apply returns the form", func(t *testing.T) {
		var out InteractionResponse
		status := s.do(t, http.MethodPost, "/v1/interactions", signToken(t, applicant, testSecret), InteractionRequest{ActionID: dispatch.ActionApply}, &out)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, out.Form, 5)
		assert.Equal(t, "profileName", out.Form[0].Name)
		assert.False(t, out.Form[4].Required)
	})

	t.Run("malformed action id", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/interactions", token, InteractionRequest{ActionID: "approve"}, &env)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("claim keeps the application pending", func(t *testing.T) {
		var out InteractionResponse
		status := s.do(t, http.MethodPost, "/v1/interactions", token, InteractionRequest{ActionID: dispatch.ActionID(dispatch.ActionClaim, app.ApplicationID)}, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "pending", out.Status)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/interactions", token, InteractionRequest{ActionID: dispatch.ActionID(dispatch.ActionReject, app.ApplicationID)}, &env)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	})

	t.Run("reject with reason", func(t *testing.T) {
		var out InteractionResponse
		status := s.do(t, http.MethodPost, "/v1/interactions", token, InteractionRequest{
			ActionID: dispatch.ActionID(dispatch.ActionReject, app.ApplicationID),
			Reason:   "Too young",
		}, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "rejected", out.Status)
		assert.Equal(t, app.ApplicationID, out.ApplicationID)
	})
}

// ==========================
// Listings
// ==========================

func TestListings(t *testing.T) {
	s := newTestServer(t)
	app := s.submit(t, applicant)

	t.Run("status listing needs the command role", func(t *testing.T) {
		var env errorEnvelope
		status := s.do(t, http.MethodGet, "/v1/applications?status=pending", signToken(t, applicant, testSecret), nil, &env)
		assert.Equal(t, http.StatusForbidden, status)

		var list ApplicationList
		status = s.do(t, http.MethodGet, "/v1/applications", signToken(t, leader, testSecret), nil, &list)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, list.Items, 1)
		assert.Equal(t, app.ApplicationID, list.Items[0].ID)
	})

	t.Run("submitters see their own applications only", func(t *testing.T) {
		var list ApplicationList
		status := s.do(t, http.MethodGet, "/v1/submitters/user-a/applications", signToken(t, applicant, testSecret), nil, &list)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, list.Items, 1)

		var env errorEnvelope
		status = s.do(t, http.MethodGet, "/v1/submitters/leader-c/applications", signToken(t, applicant, testSecret), nil, &env)
		assert.Equal(t, http.StatusForbidden, status)
	})
}

// ==========================
// Operator Commands
// ==========================

func TestCommands(t *testing.T) {
	s := newTestServer(t)
	s.submit(t, applicant)
	leaderToken := signToken(t, leader, testSecret)

	t.Run("panel", func(t *testing.T) {
		var out PanelResponse
		status := s.do(t, http.MethodPost, "/v1/commands/panel", leaderToken, PanelRequest{SpaceRef: "welcome"}, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "welcome", out.SpaceRef)
		assert.Len(t, s.platform.PostsTo("welcome"), 1)

		var env errorEnvelope
		status = s.do(t, http.MethodPost, "/v1/commands/panel", signToken(t, applicant, testSecret), PanelRequest{SpaceRef: "welcome"}, &env)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("overview", func(t *testing.T) {
		var out OverviewResponse
		status := s.do(t, http.MethodGet, "/v1/commands/applications", leaderToken, nil, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, out.Pending)
		assert.Len(t, out.Recent, 1)
	})

	t.Run("status for self is public", func(t *testing.T) {
		var out StatusResponse
		status := s.do(t, http.MethodGet, "/v1/commands/status", signToken(t, applicant, testSecret), nil, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "user-a", out.SubmitterID)
		require.Len(t, out.Records, 1)
		assert.Equal(t, "pending", out.Records[0].Status)
	})

	t.Run("cleanup keeps pending spaces", func(t *testing.T) {
		var out CleanupResponse
		status := s.do(t, http.MethodPost, "/v1/commands/cleanup", leaderToken, CleanupRequest{MaxAgeDays: 1}, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Zero(t, out.Deleted)
	})

	t.Run("delete space outside the container", func(t *testing.T) {
		s.platform.AddSpace(platform.Space{Ref: "general", Name: "general", ParentRef: "lobby"})
		var env errorEnvelope
		status := s.do(t, http.MethodPost, "/v1/commands/delete-space", leaderToken, DeleteSpaceRequest{SpaceRef: "general"}, &env)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Empty(t, s.platform.Deleted())
	})

	t.Run("health", func(t *testing.T) {
		var out HealthResponse
		status := s.do(t, http.MethodGet, "/v1/commands/health", leaderToken, nil, &out)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, healthcheck.StatusOK, out.Status)

		var env errorEnvelope
		status = s.do(t, http.MethodGet, "/v1/commands/health", signToken(t, applicant, testSecret), nil, &env)
		assert.Equal(t, http.StatusForbidden, status)
	})
}

// ==========================
// Error Mapping
// ==========================

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		"VALIDATION_FAILED":     http.StatusBadRequest,
		"AUTHORIZATION_DENIED":  http.StatusForbidden,
		"NOT_FOUND":             http.StatusNotFound,
		"DUPLICATE_APPLICATION": http.StatusConflict,
		"INVALID_TRANSITION":    http.StatusConflict,
		"RESOURCE_FAILED":       http.StatusBadGateway,
		"PERSISTENCE_FAILED":    http.StatusServiceUnavailable,
		"INTERNAL_ERROR":        http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(apperrors.ErrorCode(code)), code)
	}
}
