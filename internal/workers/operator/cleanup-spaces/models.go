// internal/workers/operator/cleanup-spaces/models.go
package cleanupspaces

import "membership-workflow/internal/platform"

type Input struct {
	Actor platform.Principal `json:"actor"`
	// MaxAgeDays overrides the configured age when positive.
	MaxAgeDays int `json:"maxAgeDays,omitempty"`
}

type Output struct {
	Deleted     int      `json:"deleted"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	DeletedRefs []string `json:"deletedRefs"`
	Message     string   `json:"message"`
}
