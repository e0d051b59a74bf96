// internal/workers/operator/list-applications/config.go
package listapplications

import (
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/workers"
)

type Config struct {
	Timeout time.Duration
	// RecentLimit caps the pending applications listed.
	RecentLimit int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:     workers.Timeout(cfg, TaskType),
		RecentLimit: 5,
	}
}
