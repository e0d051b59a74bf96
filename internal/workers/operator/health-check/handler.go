// internal/workers/operator/health-check/handler.go
package healthcheck

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/workers"
	"membership-workflow/pkg/registry"

	"golang.org/x/sync/errgroup"
)

const TaskType = "health-check"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler probes the dependencies concurrently and reports the platform latency.
type Handler struct {
	config     *Config
	checks     map[string]Pinger
	authorizer platform.Authorizer
	templates  *registry.TemplateRegistry
	logger     logger.Logger
}

type Option func(*Handler)

// WithCheck adds a named dependency to probe.
func WithCheck(name string, p Pinger) Option {
	return func(h *Handler) { h.checks[name] = p }
}

func NewHandler(
	config *Config,
	st Pinger,
	p platform.Platform,
	authorizer platform.Authorizer,
	templates *registry.TemplateRegistry,
	log logger.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		config:     config,
		checks:     map[string]Pinger{"store": st, "platform": p},
		authorizer: authorizer,
		templates:  templates,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	log := h.logger.WithFields(map[string]interface{}{"actorId": input.Actor.ID})
	return workers.Run(ctx, TaskType, h.config.Timeout, log, func(ctx context.Context) (*Output, error) {
		if !h.authorizer.CanOperate(input.Actor) {
			return nil, apperrors.NewAuthorizationError(input.Actor.ID, "operate")
		}
		return h.Probe(ctx), nil
	})
}

// Probe runs every check. A failing check degrades the status without failing the call.
func (h *Handler) Probe(ctx context.Context) *Output {
	var (
		mu        sync.Mutex
		g         errgroup.Group
		latencies = make(map[string]time.Duration, len(h.checks))
		out       = &Output{Status: StatusOK, Checks: make(map[string]string, len(h.checks))}
	)

	for name, pinger := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := pinger.Ping(ctx)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			latencies[name] = elapsed
			if err != nil {
				out.Checks[name] = err.Error()
				out.Status = StatusDegraded
				return nil
			}
			out.Checks[name] = StatusOK
			return nil
		})
	}
	_ = g.Wait()

	out.LatencyMs = latencies["platform"].Milliseconds()
	if out.Status == StatusOK {
		out.Message = h.templates.Render(registry.KeyHealthOK, map[string]interface{}{"latency": out.LatencyMs})
		return out
	}

	failed := make([]string, 0, len(out.Checks))
	for name, result := range out.Checks {
		if result != StatusOK {
			failed = append(failed, fmt.Sprintf("%s: %s", name, result))
		}
	}
	sort.Strings(failed)
	out.Message = "⚠️ " + strings.Join(failed, "; ")
	h.logger.Warn("health check degraded", map[string]interface{}{"checks": out.Checks})
	return out
}
