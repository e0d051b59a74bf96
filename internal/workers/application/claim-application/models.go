// internal/workers/application/claim-application/models.go
package claimapplication

import "membership-workflow/internal/platform"

type Input struct {
	ApplicationID string             `json:"applicationId"`
	Reviewer      platform.Principal `json:"reviewer"`
}

type Output struct {
	ApplicationID      string `json:"applicationId"`
	Status             string `json:"status"`
	DiscussionSpaceRef string `json:"discussionSpaceRef"`
	ClaimedBy          string `json:"claimedBy"`
}
