// internal/workers/operator/list-applications/handler.go
package listapplications

import (
	"context"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "list-applications"

type Store interface {
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)
	FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)
}

type Handler struct {
	config     *Config
	store      Store
	authorizer platform.Authorizer
	templates  *registry.TemplateRegistry
	logger     logger.Logger
}

func NewHandler(
	config *Config,
	st Store,
	authorizer platform.Authorizer,
	templates *registry.TemplateRegistry,
	log logger.Logger,
) *Handler {
	if config.RecentLimit <= 0 {
		config.RecentLimit = 5
	}
	return &Handler{
		config:     config,
		store:      st,
		authorizer: authorizer,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute reports the count per status and the most recent pending applications.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}

		counts, err := h.store.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		pending, err := h.store.FindByStatus(ctx, models.StatusPending)
		if err != nil {
			return nil, err
		}
		if len(pending) > h.config.RecentLimit {
			pending = pending[:h.config.RecentLimit]
		}

		out := &Output{
			Title:    h.templates.RenderTitle(registry.KeyListTitle, nil),
			Pending:  counts[models.StatusPending],
			Approved: counts[models.StatusApproved],
			Rejected: counts[models.StatusRejected],
			Recent:   make([]Entry, 0, len(pending)),
		}
		for _, app := range pending {
			space := h.templates.Render(registry.KeyListNoSpace, nil)
			if app.DiscussionSpaceRef != "" {
				space = platform.SpaceMention(app.DiscussionSpaceRef)
			}
			out.Recent = append(out.Recent, Entry{
				ApplicationID: app.ID,
				SubmitterID:   app.SubmitterID,
				ProfileName:   app.ProfileName,
				Space:         space,
				SubmittedAt:   app.CreatedAt.Format(dispatch.DateLayout),
			})
		}
		return out, nil
	})
}
