// internal/workers/operator/post-panel/handler.go
package postpanel

import (
	"context"
	"strings"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/dispatch"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"
)

const TaskType = "post-panel"

const panelColor = 0x3498db

// Handler posts the submission panel, the entry point through which users apply.
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
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID, "spaceRef": input.SpaceRef})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}
		spaceRef := strings.TrimSpace(input.SpaceRef)
		if spaceRef == "" {
			return nil, apperrors.NewValidationError("spaceRef is required")
		}

		ref, err := h.platform.PostMessage(ctx, spaceRef, PanelMessage(h.templates))
		if err != nil {
			return nil, apperrors.NewResourceError("post panel", err)
		}
		log.Info("panel posted", map[string]interface{}{"messageRef": ref})
		return &Output{SpaceRef: spaceRef, MessageRef: ref}, nil
	})
}

// PanelMessage builds the panel with its single apply action.
func PanelMessage(templates *registry.TemplateRegistry) platform.Message {
	tmpl := templates.Get(registry.KeyPanel)
	return platform.Message{
		Embeds: []platform.Embed{{
			Title:       tmpl.Title,
			Description: tmpl.Body,
			Color:       panelColor,
		}},
		Actions: []platform.Action{{
			ID:    dispatch.ActionApply,
			Label: tmpl.Label,
			Style: platform.StyleSecondary,
		}},
	}
}
