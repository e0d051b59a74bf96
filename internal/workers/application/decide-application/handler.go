// internal/workers/application/decide-application/handler.go
package decideapplication

import (
	"context"
	"time"

	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/lifecycle"
	"membership-workflow/internal/models"
	"membership-workflow/internal/workers"
)

const TaskType = "decide-application"

type Decider interface {
	Decide(ctx context.Context, req lifecycle.DecideRequest) (*models.Application, error)
}

type Handler struct {
	config  *Config
	decider Decider
	logger  logger.Logger
}

func NewHandler(config *Config, decider Decider, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		decider: decider,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute records the reviewer's decision. A rejection needs a reason.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	log := h.logger.WithFields(map[string]interface{}{
		"applicationId": input.ApplicationID,
		"reviewerId":    input.Reviewer.ID,
		"decision":      input.Decision,
	})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		app, err := h.decider.Decide(ctx, lifecycle.DecideRequest{
			ApplicationID: input.ApplicationID,
			Reviewer:      input.Reviewer,
			Decision:      models.Decision(input.Decision),
			Reason:        input.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &Output{
			ApplicationID:   app.ID,
			Status:          string(app.Status),
			ReviewerName:    app.ReviewerName,
			RejectionReason: app.RejectionReason,
			DecidedAt:       app.UpdatedAt.Format(time.RFC3339),
		}, nil
	})
}
