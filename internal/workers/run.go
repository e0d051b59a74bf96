// Package workers holds the interaction handlers and operator commands. Every task is
// a package of its own exposing TaskType, Config, Input, Output and Handler.Execute.
package workers

import (
	"context"
	"time"

	"membership-workflow/internal/common/config"
	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/metrics"
)

// DefaultTimeout bounds a task when its configuration leaves the timeout unset.
const DefaultTimeout = 30 * time.Second

// Timeout returns the configured timeout of taskType.
func Timeout(cfg *config.Config, taskType string) time.Duration {
	if cfg == nil {
		return DefaultTimeout
	}
	if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
		return config.GetDuration(ms)
	}
	return DefaultTimeout
}

// Run executes fn under timeout and records the outcome of taskType.
func Run[T any](
	ctx context.Context,
	taskType string,
	timeout time.Duration,
	log logger.Logger,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	start := time.Now()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(ctx)
	metrics.TaskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
	if err != nil {
		code := apperrors.CodeOf(err)
		metrics.TasksFailed.WithLabelValues(taskType, string(code)).Inc()
		fields := map[string]interface{}{
			"errorCode":  string(code),
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		}
		switch apperrors.GetErrorCategory(code) {
		case "REQUEST", "AUTH", "LOOKUP":
			log.Info("task refused", fields)
		default:
			log.Error("task failed", fields)
		}
		return out, err
	}

	metrics.TasksCompleted.WithLabelValues(taskType).Inc()
	log.Debug("task completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	return out, nil
}
