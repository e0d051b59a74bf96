// internal/workers/operator/query-status/handler.go
package querystatus

import (
	"context"
	"strings"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "query-status"

type HistorySource interface {
	FindBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error)
}

// Handler reports the latest applications of a submitter. Anyone may query their own
// applications; querying someone else's needs the operator capability.
type Handler struct {
	config     *Config
	history    HistorySource
	authorizer platform.Authorizer
	templates  *registry.TemplateRegistry
	logger     logger.Logger
}

func NewHandler(
	config *Config,
	history HistorySource,
	authorizer platform.Authorizer,
	templates *registry.TemplateRegistry,
	log logger.Logger,
) *Handler {
	if config.Limit <= 0 {
		config.Limit = 3
	}
	if config.ReasonLimit <= 0 {
		config.ReasonLimit = 100
	}
	return &Handler{
		config:     config,
		history:    history,
		authorizer: authorizer,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	target := strings.TrimSpace(input.SubmitterID)
	if target == "" {
		target = input.Actor.ID
	}
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID, "submitterId": target})

	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if target == "" {
			return nil, apperrors.NewValidationError("submitterId is required")
		}
		if target != input.Actor.ID && !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}

		apps, err := h.history.FindBySubmitter(ctx, target)
		if err != nil {
			return nil, err
		}
		if len(apps) > h.config.Limit {
			apps = apps[:h.config.Limit]
		}

		out := &Output{
			SubmitterID: target,
			Title:       h.templates.RenderTitle(registry.KeyStatusTitle, map[string]interface{}{"user": platform.Mention(target)}),
			Records:     make([]Record, 0, len(apps)),
		}
		if len(apps) == 0 {
			out.Message = h.templates.Render(registry.KeyStatusNone, nil)
			return out, nil
		}
		for _, app := range apps {
			out.Records = append(out.Records, h.record(app))
		}
		return out, nil
	})
}

func (h *Handler) record(app *models.Application) Record {
	rec := Record{
		ApplicationID: app.ID,
		Status:        string(app.Status),
		ProfileName:   app.ProfileName,
		Reviewer:      app.ReviewerName,
		SubmittedAt:   app.CreatedAt.Format(dispatch.DateLayout),
	}
	if app.DiscussionSpaceRef != "" {
		rec.Space = platform.SpaceMention(app.DiscussionSpaceRef)
	}
	if app.RejectionReason != "" {
		rec.Reason = dispatch.Ellipsize(app.RejectionReason, h.config.ReasonLimit)
	}
	return rec
}
