// internal/workers/application/decide-application/models.go
package decideapplication

import "membership-workflow/internal/platform"

type Input struct {
	ApplicationID string             `json:"applicationId"`
	Decision      string             `json:"decision"` // approved | rejected
	Reason        string             `json:"reason,omitempty"`
	Reviewer      platform.Principal `json:"reviewer"`
}

type Output struct {
	ApplicationID   string `json:"applicationId"`
	Status          string `json:"status"`
	ReviewerName    string `json:"reviewerName"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	DecidedAt       string `json:"decidedAt"` // ISO 8601
}
