// internal/workers/operator/cleanup-spaces/config.go
package cleanupspaces

import (
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/workers"
)

const defaultMaxAgeDays = 30

type Config struct {
	Timeout         time.Duration
	ParentContainer string
	MaxAgeDays      int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:         workers.Timeout(cfg, TaskType),
		ParentContainer: cfg.Platform.ParentContainer,
		MaxAgeDays:      cfg.Cleanup.MaxAgeDays,
	}
}
