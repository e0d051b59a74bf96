// internal/models/application.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Decision is a reviewer's verdict on a pending application.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Status returns the terminal status the decision moves an application into.
func (d Decision) Status() ApplicationStatus {
	if d == DecisionRejected {
		return StatusRejected
	}
	return StatusApproved
}

// Intake limits, in characters.
const (
	MaxProfileNameLength     = 100
	MaxBackgroundInfoLength  = 100
	MaxHistoryNotesLength    = 1000
	MaxMotivationLength      = 1000
	MaxPriorIncidentsLength  = 2000
	MaxRejectionReasonLength = 500
)

// PriorIncidentsDefault is stored when the submitter leaves prior incidents blank.
const PriorIncidentsDefault = "not specified"

// ApplicationForm holds the free-text answers of the submission form.
type ApplicationForm struct {
	ProfileName    string `json:"profileName"`
	BackgroundInfo string `json:"backgroundInfo"`
	HistoryNotes   string `json:"historyNotes"`
	Motivation     string `json:"motivation"`
	PriorIncidents string `json:"priorIncidents,omitempty"`
}

// Normalize trims the single-line fields and applies the prior incidents default.
func (f ApplicationForm) Normalize() ApplicationForm {
	f.ProfileName = strings.TrimSpace(f.ProfileName)
	f.BackgroundInfo = strings.TrimSpace(f.BackgroundInfo)
	if strings.TrimSpace(f.PriorIncidents) == "" {
		f.PriorIncidents = PriorIncidentsDefault
	}
	return f
}

type Application struct {
	ID                   string            `json:"id" db:"id"`
	SubmitterID          string            `json:"submitterId" db:"submitter_id"`
	SubmitterDisplayName string            `json:"submitterDisplayName" db:"submitter_display_name"`
	ProfileName          string            `json:"profileName" db:"profile_name"`
	BackgroundInfo       string            `json:"backgroundInfo" db:"background_info"`
	HistoryNotes         string            `json:"historyNotes" db:"history_notes"`
	Motivation           string            `json:"motivation" db:"motivation"`
	PriorIncidents       string            `json:"priorIncidents" db:"prior_incidents"`
	Status               ApplicationStatus `json:"status" db:"status"`
	DiscussionSpaceRef   string            `json:"discussionSpaceRef,omitempty" db:"discussion_space_ref"`
	ReviewMessageRef     string            `json:"reviewMessageRef,omitempty" db:"review_message_ref"`
	AuditMessageRef      string            `json:"auditMessageRef,omitempty" db:"audit_message_ref"`
	ReviewerName         string            `json:"reviewerName,omitempty" db:"reviewer_name"`
	RejectionReason      string            `json:"rejectionReason,omitempty" db:"rejection_reason"`
	CreatedAt            time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time         `json:"updatedAt" db:"updated_at"`
}

// Clone returns a copy safe to mutate.
func (a *Application) Clone() *Application {
	c := *a
	return &c
}

// NewApplication builds an unsaved pending application from a normalized form.
func NewApplication(submitterID, displayName string, form ApplicationForm) *Application {
	return &Application{
		SubmitterID:          submitterID,
		SubmitterDisplayName: displayName,
		ProfileName:          form.ProfileName,
		BackgroundInfo:       form.BackgroundInfo,
		HistoryNotes:         form.HistoryNotes,
		Motivation:           form.Motivation,
		PriorIncidents:       form.PriorIncidents,
		Status:               StatusPending,
	}
}

// Form returns the submitted answers.
func (a *Application) Form() ApplicationForm {
	return ApplicationForm{
		ProfileName:    a.ProfileName,
		BackgroundInfo: a.BackgroundInfo,
		HistoryNotes:   a.HistoryNotes,
		Motivation:     a.Motivation,
		PriorIncidents: a.PriorIncidents,
	}
}

// HasPriorIncidents is false when the submitter left the field at its default.
func (a *Application) HasPriorIncidents() bool {
	return a.PriorIncidents != "" && a.PriorIncidents != PriorIncidentsDefault
}

// CheckInvariants validates the record-level rules that hold in every state.
func (a *Application) CheckInvariants() error {
	if a.SubmitterID == "" {
		return fmt.Errorf("submitter id is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("unknown status %q", a.Status)
	}
	if a.Status == StatusRejected && strings.TrimSpace(a.RejectionReason) == "" {
		return fmt.Errorf("rejected application requires a rejection reason")
	}
	if a.Status != StatusRejected && a.RejectionReason != "" {
		return fmt.Errorf("rejection reason is only allowed on rejected applications")
	}
	if a.Status.IsTerminal() && a.ReviewerName == "" {
		return fmt.Errorf("resolved application requires a reviewer name")
	}
	return nil
}
