// internal/workers/operator/delete-space/handler.go
package deletespace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "delete-space"

// Handler deletes one application space on request. Only spaces inside the
// applications container can be deleted.
type Handler struct {
	config     *Config
	platform   platform.Platform
	authorizer platform.Authorizer
	templates  *registry.TemplateRegistry
	logger     logger.Logger
}

func NewHandler(
	config *Config,
	p platform.Platform,
	authorizer platform.Authorizer,
	templates *registry.TemplateRegistry,
	log logger.Logger,
) *Handler {
	return &Handler{
		config:     config,
		platform:   p,
		authorizer: authorizer,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ref := strings.TrimSpace(input.SpaceRef)
	if ref == "" {
		ref = strings.TrimSpace(input.InvokingSpaceRef)
	}
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID, "spaceRef": ref})

	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}
		if ref == "" {
			return nil, apperrors.NewValidationError(h.templates.Render(registry.KeySpaceRequired, nil))
		}

		space, err := h.platform.GetSpace(ctx, ref)
		if err != nil {
			return nil, platformError("get space", ref, err)
		}
		if space.ParentRef != h.config.ParentContainer {
			return nil, apperrors.NewValidationError(fmt.Sprintf("space %s is not an application space", ref))
		}

		if err := h.platform.DeleteSpace(ctx, ref); err != nil {
			return nil, platformError("delete space", ref, err)
		}
		log.Info("space deleted", map[string]interface{}{"name": space.Name})

		return &Output{
			SpaceRef: ref,
			Name:     space.Name,
			Message:  h.templates.Render(registry.KeySpaceDeleted, map[string]interface{}{"name": space.Name}),
		}, nil
	})
}

func platformError(operation, ref string, err error) error {
	if errors.Is(err, platform.ErrNotFound) {
		return apperrors.NewNotFoundError("space", ref)
	}
	return apperrors.NewResourceError(operation, err)
}
