// internal/models/audit.go
package models

import "time"

const (
	AuditEventApplicationApproved = "application_approved"
	AuditEventApplicationRejected = "application_rejected"
)

// AuditEntry is the append-only record of a resolution, written to every audit sink.
type AuditEntry struct {
	EventType       string            `json:"eventType"`
	ApplicationID   string            `json:"applicationId"`
	SubmitterID     string            `json:"submitterId"`
	SubmitterName   string            `json:"submitterName"`
	ProfileName     string            `json:"profileName"`
	Form            ApplicationForm   `json:"form"`
	Status          ApplicationStatus `json:"status"`
	ReviewerID      string            `json:"reviewerId"`
	ReviewerName    string            `json:"reviewerName"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	OccurredAt      time.Time         `json:"occurredAt"`
}

// NewAuditEntry derives the audit entry for a resolved application.
func NewAuditEntry(app *Application, reviewerID string, at time.Time) AuditEntry {
	event := AuditEventApplicationApproved
	if app.Status == StatusRejected {
		event = AuditEventApplicationRejected
	}
	return AuditEntry{
		EventType:       event,
		ApplicationID:   app.ID,
		SubmitterID:     app.SubmitterID,
		SubmitterName:   app.SubmitterDisplayName,
		ProfileName:     app.ProfileName,
		Form:            app.Form(),
		Status:          app.Status,
		ReviewerID:      reviewerID,
		ReviewerName:    app.ReviewerName,
		RejectionReason: app.RejectionReason,
		OccurredAt:      at,
	}
}

// Inconsistency describes a multi-step transition that stopped half way and needs
// manual reconciliation by an operator.
type Inconsistency struct {
	ApplicationID string    `json:"applicationId"`
	SubmitterID   string    `json:"submitterId"`
	Step          string    `json:"step"`
	Error         string    `json:"error"`
	DetectedAt    time.Time `json:"detectedAt"`
}
