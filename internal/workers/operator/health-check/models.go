// internal/workers/operator/health-check/models.go
package healthcheck

import "membership-workflow/internal/platform"

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

type Input struct {
	Actor platform.Principal `json:"actor"`
}

type Output struct {
	Status string `json:"status"`
	// LatencyMs is the platform round trip.
	LatencyMs int64             `json:"latencyMs"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message"`
}
