// internal/workers/application/submit-application/models.go
package submitapplication

type Input struct {
	SubmitterID          string `json:"submitterId"`
	SubmitterDisplayName string `json:"submitterDisplayName"`
	ProfileName          string `json:"profileName"`
	BackgroundInfo       string `json:"backgroundInfo"`
	HistoryNotes         string `json:"historyNotes"`
	Motivation           string `json:"motivation"`
	PriorIncidents       string `json:"priorIncidents,omitempty"`
}

type Output struct {
	ApplicationID      string `json:"applicationId"`
	Status             string `json:"status"`
	DiscussionSpaceRef string `json:"discussionSpaceRef,omitempty"`
	Notice             string `json:"notice"`
	CreatedAt          string `json:"createdAt"` // ISO 8601
}
