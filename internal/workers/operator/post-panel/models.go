// internal/workers/operator/post-panel/models.go
package postpanel

import "membership-workflow/internal/platform"

type Input struct {
	SpaceRef string             `json:"spaceRef"`
	Actor    platform.Principal `json:"actor"`
}

type Output struct {
	SpaceRef   string `json:"spaceRef"`
	MessageRef string `json:"messageRef"`
}
