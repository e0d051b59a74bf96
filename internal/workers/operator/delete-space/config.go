// internal/workers/operator/delete-space/config.go
package deletespace

import (
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/workers"
)

type Config struct {
	Timeout         time.Duration
	ParentContainer string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout:         workers.Timeout(cfg, TaskType),
		ParentContainer: cfg.Platform.ParentContainer,
	}
}
