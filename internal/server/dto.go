package server

import (
	"membership-workflow/internal/models"
	claimapplication "membership-workflow/internal/workers/application/claim-application"
	decideapplication "membership-workflow/internal/workers/application/decide-application"
	submitapplication "membership-workflow/internal/workers/application/submit-application"
	cleanupspaces "membership-workflow/internal/workers/operator/cleanup-spaces"
	deletespace "membership-workflow/internal/workers/operator/delete-space"
	healthcheck "membership-workflow/internal/workers/operator/health-check"
	listapplications "membership-workflow/internal/workers/operator/list-applications"
	postpanel "membership-workflow/internal/workers/operator/post-panel"
	querystatus "membership-workflow/internal/workers/operator/query-status"
)

// Response bodies are named per route so the OpenAPI schema names stay unique.
type (
	SubmissionResponse   submitapplication.Output
	DecisionResponse     decideapplication.Output
	ClaimResponse        claimapplication.Output
	PanelResponse        postpanel.Output
	OverviewResponse     listapplications.Output
	CleanupResponse      cleanupspaces.Output
	StatusResponse       querystatus.Output
	SpaceDeletedResponse deletespace.Output
	HealthResponse       healthcheck.Output
)

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

type SubmissionRequest struct {
	ProfileName    string `json:"profileName" example:"Nyam 2253"`
	BackgroundInfo string `json:"backgroundInfo" example:"Seth 20"`
	HistoryNotes   string `json:"historyNotes"`
	Motivation     string `json:"motivation"`
	PriorIncidents string `json:"priorIncidents,omitempty"`
}

type submitInput struct {
	Body SubmissionRequest
}

type submitOutput struct {
	Body SubmissionResponse
}

type DecisionRequest struct {
	Decision string `json:"decision" enum:"approved,rejected"`
	Reason   string `json:"reason,omitempty"`
}

type decideInput struct {
	ID   string `path:"id"`
	Body DecisionRequest
}

type decideOutput struct {
	Body DecisionResponse
}

type claimInput struct {
	ID string `path:"id"`
}

type claimOutput struct {
	Body ClaimResponse
}

type ApplicationList struct {
	Items []*models.Application `json:"items"`
}

type listInput struct {
	Status string `query:"status" enum:"pending,approved,rejected" default:"pending"`
}

type listOutput struct {
	Body ApplicationList
}

type submitterInput struct {
	ID string `path:"id"`
}

// InteractionRequest is a triggered message action relayed by the bridge.
type InteractionRequest struct {
	ActionID string `json:"actionId" example:"approve:5b0c..."`
	Reason   string `json:"reason,omitempty"`
}

// FormField describes one input of the submission form.
type FormField struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	MaxLength int    `json:"maxLength"`
	Required  bool   `json:"required"`
	Multiline bool   `json:"multiline,omitempty"`
}

type InteractionResponse struct {
	Action        string      `json:"action"`
	ApplicationID string      `json:"applicationId,omitempty"`
	Status        string      `json:"status,omitempty"`
	Form          []FormField `json:"form,omitempty"`
}

type interactionInput struct {
	Body InteractionRequest
}

type interactionOutput struct {
	Body InteractionResponse
}

type PanelRequest struct {
	SpaceRef string `json:"spaceRef"`
}

type panelInput struct {
	Body PanelRequest
}

type panelOutput struct {
	Body PanelResponse
}

type overviewOutput struct {
	Body OverviewResponse
}

type CleanupRequest struct {
	MaxAgeDays int `json:"maxAgeDays,omitempty" minimum:"0"`
}

type cleanupInput struct {
	Body CleanupRequest `required:"false"`
}

type cleanupOutput struct {
	Body CleanupResponse
}

type statusInput struct {
	SubmitterID string `query:"submitterId"`
}

type statusOutput struct {
	Body StatusResponse
}

type DeleteSpaceRequest struct {
	SpaceRef         string `json:"spaceRef,omitempty"`
	InvokingSpaceRef string `json:"invokingSpaceRef,omitempty"`
}

type deleteSpaceInput struct {
	Body DeleteSpaceRequest `required:"false"`
}

type deleteSpaceOutput struct {
	Body SpaceDeletedResponse
}

type healthCheckOutput struct {
	Body HealthResponse
}

// submissionForm lists the inputs the bridge renders when the apply action is used.
func submissionForm() []FormField {
	return []FormField{
		{Name: "profileName", Label: "Game nickname and static ID", MaxLength: models.MaxProfileNameLength, Required: true},
		{Name: "backgroundInfo", Label: "Real name and age", MaxLength: models.MaxBackgroundInfoLength, Required: true},
		{Name: "historyNotes", Label: "Previous communities", MaxLength: models.MaxHistoryNotesLength, Required: true, Multiline: true},
		{Name: "motivation", Label: "Why do you want to join", MaxLength: models.MaxMotivationLength, Required: true, Multiline: true},
		{Name: "priorIncidents", Label: "Prior incidents", MaxLength: models.MaxPriorIncidentsLength, Multiline: true},
	}
}
