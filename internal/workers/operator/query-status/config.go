// internal/workers/operator/query-status/config.go
package querystatus

import (
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/workers"
)

type Config struct {
	Timeout time.Duration
	// Limit caps the records returned, newest first.
	Limit int
	// ReasonLimit caps the rejection reason, in characters.
	ReasonLimit int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:     workers.Timeout(cfg, TaskType),
		Limit:       3,
		ReasonLimit: 100,
	}
}
