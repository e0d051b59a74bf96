// internal/workers/operator/post-panel/config.go
package postpanel

import (
	"time"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/workers"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: workers.Timeout(cfg, TaskType),
	}
}
