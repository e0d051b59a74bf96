package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func resolved(status ApplicationStatus, reason string) *Application {
	return &Application{
		ID:              "app-1",
		SubmitterID:     "user-a",
		Status:          status,
		ReviewerName:    "B",
		RejectionReason: reason,
	}
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name    string
		app     *Application
		wantErr string
	}{
		{name: "pending", app: &Application{SubmitterID: "user-a", Status: StatusPending}},
		{name: "approved", app: resolved(StatusApproved, "")},
		{name: "rejected with reason", app: resolved(StatusRejected, "Too young")},
		{name: "missing submitter", app: &Application{Status: StatusPending}, wantErr: "submitter id"},
		{name: "unknown status", app: &Application{SubmitterID: "user-a", Status: "archived"}, wantErr: "unknown status"},
		{name: "rejected without reason", app: resolved(StatusRejected, "  "), wantErr: "requires a rejection reason"},
		{name: "approved with reason", app: resolved(StatusApproved, "nice"), wantErr: "only allowed on rejected"},
		{name: "pending with reason", app: &Application{SubmitterID: "user-a", Status: StatusPending, RejectionReason: "x"}, wantErr: "only allowed on rejected"},
		{name: "resolved without reviewer", app: &Application{SubmitterID: "user-a", Status: StatusApproved}, wantErr: "reviewer name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.app.CheckInvariants()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStatusAndDecision(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())

	assert.True(t, DecisionApproved.Valid())
	assert.True(t, DecisionRejected.Valid())
	assert.False(t, Decision("pending").Valid())

	assert.Equal(t, StatusApproved, DecisionApproved.Status())
	assert.Equal(t, StatusRejected, DecisionRejected.Status())
}

func TestApplicationForm_Normalize(t *testing.T) {
	form := ApplicationForm{
		ProfileName:    "  Nyam 2253 ",
		BackgroundInfo: "Seth 20\n",
		HistoryNotes:   "  kept as typed  ",
		Motivation:     "content",
		PriorIncidents: "   ",
	}.Normalize()

	assert.Equal(t, "Nyam 2253", form.ProfileName)
	assert.Equal(t, "Seth 20", form.BackgroundInfo)
	assert.Equal(t, "  kept as typed  ", form.HistoryNotes)
	assert.Equal(t, PriorIncidentsDefault, form.PriorIncidents)

	app := NewApplication("user-a", "Skeet", form)
	assert.Equal(t, StatusPending, app.Status)
	assert.False(t, app.HasPriorIncidents())
	assert.Equal(t, form, app.Form())

	app.PriorIncidents = strings.Repeat("x", 3)
	assert.True(t, app.HasPriorIncidents())
}

func TestClone_IsIndependent(t *testing.T) {
	app := resolved(StatusApproved, "")
	c := app.Clone()
	c.ReviewerName = "D"
	assert.Equal(t, "B", app.ReviewerName)
}

func TestNewAuditEntry(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	approved := NewAuditEntry(resolved(StatusApproved, ""), "reviewer-b", at)
	assert.Equal(t, AuditEventApplicationApproved, approved.EventType)
	assert.Equal(t, "reviewer-b", approved.ReviewerID)
	assert.Equal(t, at, approved.OccurredAt)

	rejected := NewAuditEntry(resolved(StatusRejected, "Too young"), "reviewer-b", at)
	assert.Equal(t, AuditEventApplicationRejected, rejected.EventType)
	assert.Equal(t, "Too young", rejected.RejectionReason)
}
