package server

import (
	"context"
	"net/http"

	cleanupspaces "membership-workflow/internal/workers/operator/cleanup-spaces"
	deletespace "membership-workflow/internal/workers/operator/delete-space"
	healthcheck "membership-workflow/internal/workers/operator/health-check"
	listapplications "membership-workflow/internal/workers/operator/list-applications"
	postpanel "membership-workflow/internal/workers/operator/post-panel"
	querystatus "membership-workflow/internal/workers/operator/query-status"

	"github.com/danielgtaylor/huma/v2"
)

// registerCommands mounts the operator commands. Each handler checks the actor's
// capability itself.
func (s *server) registerCommands(api huma.API) {
	if h := s.handlers.PostPanel; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "post-panel",
			Method:      http.MethodPost,
			Path:        "/commands/panel",
			Summary:     "Post the submission panel to a space",
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusBadGateway},
		}, func(ctx context.Context, in *panelInput) (*panelOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &postpanel.Input{SpaceRef: in.Body.SpaceRef, Actor: actor})
			if err != nil {
				return nil, s.handleError(postpanel.TaskType, err)
			}
			return &panelOutput{Body: PanelResponse(*out)}, nil
		})
	}

	if h := s.handlers.List; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "list-applications",
			Method:      http.MethodGet,
			Path:        "/commands/applications",
			Summary:     "Counts per status and the most recent pending applications",
			Errors:      []int{http.StatusForbidden},
		}, func(ctx context.Context, _ *struct{}) (*overviewOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &listapplications.Input{Actor: actor})
			if err != nil {
				return nil, s.handleError(listapplications.TaskType, err)
			}
			return &overviewOutput{Body: OverviewResponse(*out)}, nil
		})
	}

	if h := s.handlers.Cleanup; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "cleanup-spaces",
			Method:      http.MethodPost,
			Path:        "/commands/cleanup",
			Summary:     "Delete stale discussion spaces",
			Errors:      []int{http.StatusForbidden, http.StatusBadGateway},
		}, func(ctx context.Context, in *cleanupInput) (*cleanupOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &cleanupspaces.Input{Actor: actor, MaxAgeDays: in.Body.MaxAgeDays})
			if err != nil {
				return nil, s.handleError(cleanupspaces.TaskType, err)
			}
			return &cleanupOutput{Body: CleanupResponse(*out)}, nil
		})
	}

	if h := s.handlers.QueryStatus; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "query-status",
			Method:      http.MethodGet,
			Path:        "/commands/status",
			Summary:     "Recent applications of a submitter",
			Errors:      []int{http.StatusForbidden},
		}, func(ctx context.Context, in *statusInput) (*statusOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &querystatus.Input{Actor: actor, SubmitterID: in.SubmitterID})
			if err != nil {
				return nil, s.handleError(querystatus.TaskType, err)
			}
			return &statusOutput{Body: StatusResponse(*out)}, nil
		})
	}

	if h := s.handlers.DeleteSpace; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "delete-space",
			Method:      http.MethodPost,
			Path:        "/commands/delete-space",
			Summary:     "Delete a discussion space",
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusBadGateway},
		}, func(ctx context.Context, in *deleteSpaceInput) (*deleteSpaceOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &deletespace.Input{
				Actor:            actor,
				SpaceRef:         in.Body.SpaceRef,
				InvokingSpaceRef: in.Body.InvokingSpaceRef,
			})
			if err != nil {
				return nil, s.handleError(deletespace.TaskType, err)
			}
			return &deleteSpaceOutput{Body: SpaceDeletedResponse(*out)}, nil
		})
	}

	if h := s.handlers.HealthCheck; h != nil {
		huma.Register(api, huma.Operation{
			OperationID: "health-check",
			Method:      http.MethodGet,
			Path:        "/commands/health",
			Summary:     "Dependency health and platform latency",
			Errors:      []int{http.StatusForbidden},
		}, func(ctx context.Context, _ *struct{}) (*healthCheckOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := h.Execute(ctx, &healthcheck.Input{Actor: actor})
			if err != nil {
				return nil, s.handleError(healthcheck.TaskType, err)
			}
			return &healthCheckOutput{Body: HealthResponse(*out)}, nil
		})
	}
}
