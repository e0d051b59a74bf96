// internal/workers/operator/list-applications/models.go
package listapplications

import "membership-workflow/internal/platform"

type Input struct {
	Actor platform.Principal `json:"actor"`
}

type Entry struct {
	ApplicationID string `json:"applicationId"`
	SubmitterID   string `json:"submitterId"`
	ProfileName   string `json:"profileName"`
	Space         string `json:"space"`
	SubmittedAt   string `json:"submittedAt"` // dd.mm.yyyy HH:MM
}

type Output struct {
	Title    string  `json:"title"`
	Pending  int     `json:"pending"`
	Approved int     `json:"approved"`
	Rejected int     `json:"rejected"`
	Recent   []Entry `json:"recent"`
}
