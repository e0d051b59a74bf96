// internal/workers/operator/query-status/models.go
package querystatus

import "membership-workflow/internal/platform"

type Input struct {
	Actor platform.Principal `json:"actor"`
	// SubmitterID defaults to the actor.
	SubmitterID string `json:"submitterId,omitempty"`
}

type Record struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	ProfileName   string `json:"profileName"`
	Space         string `json:"space,omitempty"`
	Reviewer      string `json:"reviewer,omitempty"`
	Reason        string `json:"reason,omitempty"`
	SubmittedAt   string `json:"submittedAt"` // dd.mm.yyyy HH:MM
}

type Output struct {
	SubmitterID string   `json:"submitterId"`
	Title       string   `json:"title"`
	Records     []Record `json:"records"`
	Message     string   `json:"message,omitempty"`
}
