// Package server exposes the interaction handlers and operator commands over HTTP for
// the platform bridge.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	claimapplication "membership-workflow/internal/workers/application/claim-application"
	decideapplication "membership-workflow/internal/workers/application/decide-application"
	submitapplication "membership-workflow/internal/workers/application/submit-application"
	cleanupspaces "membership-workflow/internal/workers/operator/cleanup-spaces"
	deletespace "membership-workflow/internal/workers/operator/delete-space"
	healthcheck "membership-workflow/internal/workers/operator/health-check"
	listapplications "membership-workflow/internal/workers/operator/list-applications"
	postpanel "membership-workflow/internal/workers/operator/post-panel"
	querystatus "membership-workflow/internal/workers/operator/query-status"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers are the task handlers served over HTTP. A nil handler is not mounted.
type Handlers struct {
	Submit      *submitapplication.Handler
	Decide      *decideapplication.Handler
	Claim       *claimapplication.Handler
	PostPanel   *postpanel.Handler
	List        *listapplications.Handler
	Cleanup     *cleanupspaces.Handler
	QueryStatus *querystatus.Handler
	DeleteSpace *deletespace.Handler
	HealthCheck *healthcheck.Handler
}

// ApplicationReader serves the read-only application listings.
type ApplicationReader interface {
	FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)
	FindBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error)
}

// Pinger backs the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	BasePath     string
	JWTSecret    string
	Version      string
	Handlers     Handlers
	Applications ApplicationReader
	Authorizer   platform.Authorizer
	Ready        Pinger
	Logger       logger.Logger
}

type server struct {
	handlers   Handlers
	apps       ApplicationReader
	authorizer platform.Authorizer
	ready      Pinger
	errors     *apperrors.ErrorHandler
	logger     logger.Logger
}

// New returns the HTTP handler of the bot.
func New(cfg Config) (http.Handler, error) {
	if cfg.Authorizer == nil {
		return nil, errors.New("server: authorizer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}

	log := cfg.Logger.WithFields(map[string]interface{}{"component": "server"})
	s := &server{
		handlers:   cfg.Handlers,
		apps:       cfg.Applications,
		authorizer: cfg.Authorizer,
		ready:      cfg.Ready,
		errors:     apperrors.NewErrorHandler(log),
		logger:     log,
	}

	huma.DefaultArrayNullable = false
	installErrorEnvelope()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.JWTSecret))

	router.Get("/ready", s.readiness)
	router.Handle("/metrics", promhttp.Handler())

	hcfg := huma.DefaultConfig("Membership Workflow API", version)
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	s.registerApplications(group)
	s.registerInteractions(group)
	s.registerCommands(group)

	return router, nil
}

func (s *server) readiness(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness probe failed", map[string]interface{}{"error": err.Error()})
			respondStatusError(w, newAPIError(http.StatusServiceUnavailable, string(apperrors.ErrCodePersistenceFailed), "not ready", nil))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness probe",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

// requireOperate is the command-role gate of the listing routes.
func (s *server) requireOperate(ctx context.Context) (platform.Principal, huma.StatusError) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return actor, authErr
	}
	if !s.authorizer.CanOperate(actor) {
		return actor, s.handleError("authorize", apperrors.NewAuthorizationError(actor.ID, "operate"))
	}
	return actor, nil
}
