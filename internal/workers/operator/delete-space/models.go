// internal/workers/operator/delete-space/models.go
package deletespace

import "membership-workflow/internal/platform"

type Input struct {
	Actor    platform.Principal `json:"actor"`
	SpaceRef string             `json:"spaceRef,omitempty"`
	// InvokingSpaceRef is used when SpaceRef is empty.
	InvokingSpaceRef string `json:"invokingSpaceRef,omitempty"`
}

type Output struct {
	SpaceRef string `json:"spaceRef"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}
