// internal/workers/operator/cleanup-spaces/handler.go
package cleanupspaces

import (
	"context"
	"errors"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/metrics"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "cleanup-spaces"

type PendingSource interface {
	FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)
}

// Handler deletes old discussion spaces from the applications container. Spaces of
// pending applications are kept whatever their age.
type Handler struct {
	config     *Config
	platform   platform.Platform
	pending    PendingSource
	authorizer platform.Authorizer
	templates  *registry.TemplateRegistry
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(
	config *Config,
	p platform.Platform,
	pending PendingSource,
	authorizer platform.Authorizer,
	templates *registry.TemplateRegistry,
	log logger.Logger,
	opts ...Option,
) *Handler {
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = defaultMaxAgeDays
	}
	h := &Handler{
		config:     config,
		platform:   p,
		pending:    pending,
		authorizer: authorizer,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	maxAgeDays := h.maxAge(input.MaxAgeDays)
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID, "maxAgeDays": maxAgeDays})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}
		return h.sweep(ctx, log, maxAgeDays)
	})
}

// Sweep runs the cleanup without an acting user, as the scheduler does. A positive
// maxAgeDays overrides the configured age.
func (h *Handler) Sweep(ctx context.Context, maxAgeDays int) (*Output, error) {
	maxAgeDays = h.maxAge(maxAgeDays)
	log := h.logger.WithFields(map[string]interface{}{"maxAgeDays": maxAgeDays})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		return h.sweep(ctx, log, maxAgeDays)
	})
}

func (h *Handler) maxAge(override int) int {
	if override > 0 {
		return override
	}
	return h.config.MaxAgeDays
}

func (h *Handler) sweep(ctx context.Context, log logger.Logger, maxAgeDays int) (*Output, error) {
	spaces, err := h.platform.ListSpaces(ctx, h.config.ParentContainer)
	if err != nil {
		return nil, apperrors.NewResourceError("list spaces", err)
	}
	pending, err := h.pending.FindByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, err
	}
	keep := make(map[string]bool, len(pending))
	for _, app := range pending {
		if app.DiscussionSpaceRef != "" {
			keep[app.DiscussionSpaceRef] = true
		}
	}

	cutoff := h.now().AddDate(0, 0, -maxAgeDays)
	out := &Output{DeletedRefs: []string{}}
	for _, space := range spaces {
		if keep[space.Ref] || space.CreatedAt.IsZero() || !space.CreatedAt.Before(cutoff) {
			out.Skipped++
			continue
		}
		err := h.platform.DeleteSpace(ctx, space.Ref)
		switch {
		case err == nil:
			out.Deleted++
			out.DeletedRefs = append(out.DeletedRefs, space.Ref)
		case errors.Is(err, platform.ErrNotFound):
			out.Skipped++
		default:
			out.Failed++
			metrics.DispatchFailures.WithLabelValues("cleanup_delete_space").Inc()
			log.Warn("failed to delete space", map[string]interface{}{
				"spaceRef": space.Ref,
				"error":    err.Error(),
			})
		}
	}

	out.Message = h.templates.Render(registry.KeyCleanupDone, map[string]interface{}{"deleted": out.Deleted})
	log.Info("cleanup finished", map[string]interface{}{
		"deleted": out.Deleted,
		"failed":  out.Failed,
		"skipped": out.Skipped,
	})
	return out, nil
}
