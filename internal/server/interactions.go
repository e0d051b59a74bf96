package server

import (
	"context"
	"net/http"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/models"

	"github.com/danielgtaylor/huma/v2"
)

// registerInteractions mounts the single entry point for message actions. The
// action id carries the kind and the application it belongs to.
func (s *server) registerInteractions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "handle-interaction",
		Method:      http.MethodPost,
		Path:        "/interactions",
		Summary:     "Handle a triggered message action",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, in *interactionInput) (*interactionOutput, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if in.Body.ActionID == dispatch.ActionApply {
			return &interactionOutput{Body: InteractionResponse{
				Action: dispatch.ActionApply,
				Form:   submissionForm(),
			}}, nil
		}

		kind, id, ok := dispatch.ParseActionID(in.Body.ActionID)
		if !ok {
			return nil, s.handleError("interaction", apperrors.NewValidationError("unknown action "+in.Body.ActionID))
		}
		resp := InteractionResponse{Action: kind, ApplicationID: id}
		switch {
		case kind == dispatch.ActionApprove && s.handlers.Decide != nil:
			out, err := s.decide(ctx, id, string(models.DecisionApproved), "")
			if err != nil {
				return nil, err
			}
			resp.Status = out.Status
		case kind == dispatch.ActionReject && s.handlers.Decide != nil:
			out, err := s.decide(ctx, id, string(models.DecisionRejected), in.Body.Reason)
			if err != nil {
				return nil, err
			}
			resp.Status = out.Status
		case kind == dispatch.ActionClaim && s.handlers.Claim != nil:
			out, err := s.claim(ctx, id)
			if err != nil {
				return nil, err
			}
			resp.Status = out.Status
		default:
			return nil, s.handleError("interaction", apperrors.NewValidationError("unsupported action "+kind))
		}
		return &interactionOutput{Body: resp}, nil
	})
}
