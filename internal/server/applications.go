package server

import (
	"context"
	"net/http"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/models"
	claimapplication "membership-workflow/internal/workers/application/claim-application"
	decideapplication "membership-workflow/internal/workers/application/decide-application"
	submitapplication "membership-workflow/internal/workers/application/submit-application"

	"github.com/danielgtaylor/huma/v2"
)

func (s *server) registerApplications(api huma.API) {
	if s.handlers.Submit != nil {
		huma.Register(api, huma.Operation{
			OperationID:   "submit-application",
			Method:        http.MethodPost,
			Path:          "/applications",
			Summary:       "Submit an application",
			DefaultStatus: http.StatusCreated,
			Errors:        []int{http.StatusBadRequest, http.StatusConflict},
		}, func(ctx context.Context, in *submitInput) (*submitOutput, error) {
			actor, authErr := actorFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			out, err := s.handlers.Submit.Execute(ctx, &submitapplication.Input{
				SubmitterID:          actor.ID,
				SubmitterDisplayName: actor.Name,
				ProfileName:          in.Body.ProfileName,
				BackgroundInfo:       in.Body.BackgroundInfo,
				HistoryNotes:         in.Body.HistoryNotes,
				Motivation:           in.Body.Motivation,
				PriorIncidents:       in.Body.PriorIncidents,
			})
			if err != nil {
				return nil, s.handleError(submitapplication.TaskType, err)
			}
			return &submitOutput{Body: SubmissionResponse(*out)}, nil
		})
	}

	if s.handlers.Decide != nil {
		huma.Register(api, huma.Operation{
			OperationID: "decide-application",
			Method:      http.MethodPost,
			Path:        "/applications/{id}/decision",
			Summary:     "Approve or reject a pending application",
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, in *decideInput) (*decideOutput, error) {
			out, err := s.decide(ctx, in.ID, in.Body.Decision, in.Body.Reason)
			if err != nil {
				return nil, err
			}
			return &decideOutput{Body: *out}, nil
		})
	}

	if s.handlers.Claim != nil {
		huma.Register(api, huma.Operation{
			OperationID: "claim-application",
			Method:      http.MethodPost,
			Path:        "/applications/{id}/claim",
			Summary:     "Take a pending application for review",
			Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, in *claimInput) (*claimOutput, error) {
			out, err := s.claim(ctx, in.ID)
			if err != nil {
				return nil, err
			}
			return &claimOutput{Body: *out}, nil
		})
	}

	if s.apps == nil {
		return
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-applications-by-status",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List applications in a status",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, in *listInput) (*listOutput, error) {
		if _, authErr := s.requireOperate(ctx); authErr != nil {
			return nil, authErr
		}
		apps, err := s.apps.FindByStatus(ctx, models.ApplicationStatus(in.Status))
		if err != nil {
			return nil, s.handleError("list applications", err)
		}
		return &listOutput{Body: ApplicationList{Items: nonNil(apps)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submitter-applications",
		Method:      http.MethodGet,
		Path:        "/submitters/{id}/applications",
		Summary:     "List a submitter's applications, newest first",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, in *submitterInput) (*listOutput, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if in.ID != actor.ID && !s.authorizer.CanOperate(actor) {
			return nil, s.handleError("list submitter applications", apperrors.NewAuthorizationError(actor.ID, "operate"))
		}
		apps, err := s.apps.FindBySubmitter(ctx, in.ID)
		if err != nil {
			return nil, s.handleError("list submitter applications", err)
		}
		return &listOutput{Body: ApplicationList{Items: nonNil(apps)}}, nil
	})
}

func (s *server) decide(ctx context.Context, id, decision, reason string) (*DecisionResponse, error) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	out, err := s.handlers.Decide.Execute(ctx, &decideapplication.Input{
		ApplicationID: id,
		Decision:      decision,
		Reason:        reason,
		Reviewer:      actor,
	})
	if err != nil {
		return nil, s.handleError(decideapplication.TaskType, err)
	}
	resp := DecisionResponse(*out)
	return &resp, nil
}

func (s *server) claim(ctx context.Context, id string) (*ClaimResponse, error) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	out, err := s.handlers.Claim.Execute(ctx, &claimapplication.Input{
		ApplicationID: id,
		Reviewer:      actor,
	})
	if err != nil {
		return nil, s.handleError(claimapplication.TaskType, err)
	}
	resp := ClaimResponse(*out)
	return &resp, nil
}

func nonNil(apps []*models.Application) []*models.Application {
	if apps == nil {
		return []*models.Application{}
	}
	return apps
}
