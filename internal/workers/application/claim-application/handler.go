// internal/workers/application/claim-application/handler.go
package claimapplication

import (
	"context"

	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/lifecycle"
	"membership-workflow/internal/models"
	"membership-workflow/internal/workers"
)

const TaskType = "claim-application"

type Claimer interface {
	Claim(ctx context.Context, req lifecycle.ClaimRequest) (*models.Application, error)
}

type Handler struct {
	config  *Config
	claimer Claimer
	logger  logger.Logger
}

func NewHandler(config *Config, claimer Claimer, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		claimer: claimer,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	log := h.logger.WithFields(map[string]interface{}{
		"applicationId": input.ApplicationID,
		"reviewerId":    input.Reviewer.ID,
	})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		app, err := h.claimer.Claim(ctx, lifecycle.ClaimRequest{
			ApplicationID: input.ApplicationID,
			Reviewer:      input.Reviewer,
		})
		if err != nil {
			return nil, err
		}
		return &Output{
			ApplicationID:      app.ID,
			Status:             string(app.Status),
			DiscussionSpaceRef: app.DiscussionSpaceRef,
			ClaimedBy:          input.Reviewer.ID,
		}, nil
	})
}
