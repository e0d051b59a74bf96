package store

import (
	"context"
	"encoding/json"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/models"

	"github.com/jmoiron/sqlx"
)

const (
	insertAuditSQL = `INSERT INTO audit_log
		(application_id, event_type, submitter_id, reviewer_id, reviewer_name, status, rejection_reason, payload, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAuditSQL = `SELECT payload FROM audit_log WHERE application_id = ? ORDER BY id`
)

// AuditLog is the append-only SQL audit trail of resolutions.
type AuditLog struct {
	db *sqlx.DB
}

func NewAuditLog(db *sqlx.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (a *AuditLog) Name() string { return "sql" }

// Append stores the entry; the returned reference is empty because readers find entries
// by application id.
func (a *AuditLog) Append(ctx context.Context, entry models.AuditEntry) (string, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	_, err = a.db.ExecContext(ctx, a.db.Rebind(insertAuditSQL),
		entry.ApplicationID,
		entry.EventType,
		entry.SubmitterID,
		entry.ReviewerID,
		entry.ReviewerName,
		string(entry.Status),
		entry.RejectionReason,
		string(payload),
		entry.OccurredAt.UTC().Truncate(time.Microsecond),
	)
	if err != nil {
		return "", apperrors.NewPersistenceError("append audit", err)
	}
	return "", nil
}

// ForApplication returns the audit trail of one application, oldest first.
func (a *AuditLog) ForApplication(ctx context.Context, applicationID string) ([]models.AuditEntry, error) {
	var payloads []string
	if err := a.db.SelectContext(ctx, &payloads, a.db.Rebind(selectAuditSQL), applicationID); err != nil {
		return nil, apperrors.NewPersistenceError("read audit", err)
	}

	entries := make([]models.AuditEntry, 0, len(payloads))
	for _, p := range payloads {
		var entry models.AuditEntry
		if err := json.Unmarshal([]byte(p), &entry); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
