// internal/workers/application/submit-application/handler.go
package submitapplication

import (
	"context"
	"time"

	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/lifecycle"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "submit-application"

// spaceUnavailable stands in for the space mention when provisioning failed.
const spaceUnavailable = "not available yet"

type Submitter interface {
	Submit(ctx context.Context, req lifecycle.SubmitRequest) (*models.Application, error)
}

// Handler turns a submitted form into a pending application.
type Handler struct {
	config    *Config
	submitter Submitter
	templates *registry.TemplateRegistry
	logger    logger.Logger
}

func NewHandler(config *Config, submitter Submitter, templates *registry.TemplateRegistry, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		submitter: submitter,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	log := h.logger.WithFields(map[string]interface{}{"submitterId": input.SubmitterID})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		return h.execute(ctx, input)
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	app, err := h.submitter.Submit(ctx, lifecycle.SubmitRequest{
		SubmitterID:          input.SubmitterID,
		SubmitterDisplayName: input.SubmitterDisplayName,
		Form: models.ApplicationForm{
			ProfileName:    input.ProfileName,
			BackgroundInfo: input.BackgroundInfo,
			HistoryNotes:   input.HistoryNotes,
			Motivation:     input.Motivation,
			PriorIncidents: input.PriorIncidents,
		},
	})
	if err != nil {
		return nil, err
	}

	space := spaceUnavailable
	if app.DiscussionSpaceRef != "" {
		space = platform.SpaceMention(app.DiscussionSpaceRef)
	}

	return &Output{
		ApplicationID:      app.ID,
		Status:             string(app.Status),
		DiscussionSpaceRef: app.DiscussionSpaceRef,
		Notice:             h.templates.Render(registry.KeySubmitted, map[string]interface{}{"space": space}),
		CreatedAt:          app.CreatedAt.Format(time.RFC3339),
	}, nil
}
