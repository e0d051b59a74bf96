package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const applicationColumns = `id, submitter_id, submitter_display_name, profile_name, background_info,
	history_notes, motivation, prior_incidents, status, discussion_space_ref, review_message_ref,
	audit_message_ref, reviewer_name, rejection_reason, created_at, updated_at`

const (
	insertApplicationSQL = `INSERT INTO applications (` + applicationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateApplicationSQL = `UPDATE applications SET
		submitter_display_name = ?,
		profile_name = ?,
		background_info = ?,
		history_notes = ?,
		motivation = ?,
		prior_incidents = ?,
		status = ?,
		reviewer_name = ?,
		rejection_reason = ?,
		discussion_space_ref = CASE WHEN discussion_space_ref = '' THEN ? ELSE discussion_space_ref END,
		review_message_ref = CASE WHEN review_message_ref = '' THEN ? ELSE review_message_ref END,
		audit_message_ref = CASE WHEN audit_message_ref = '' THEN ? ELSE audit_message_ref END,
		updated_at = ?
		WHERE id = ? AND (status = 'pending' OR status = ?)`

	resolveApplicationSQL = `UPDATE applications SET
		status = ?,
		reviewer_name = ?,
		rejection_reason = ?,
		updated_at = ?
		WHERE id = ? AND status = 'pending'`

	selectByIDSQL               = `SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`
	selectBySubmitterSQL        = `SELECT ` + applicationColumns + ` FROM applications WHERE submitter_id = ? ORDER BY created_at DESC, id DESC`
	selectByStatusSQL           = `SELECT ` + applicationColumns + ` FROM applications WHERE status = ? ORDER BY created_at DESC, id DESC`
	selectPendingBySubmitterSQL = `SELECT ` + applicationColumns + ` FROM applications WHERE submitter_id = ? AND status = 'pending' LIMIT 1`
	countByStatusSQL            = `SELECT status, COUNT(*) AS total FROM applications GROUP BY status`
)

// SQLStore implements Store on Postgres or SQLite through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	logger logger.Logger
	now    func() time.Time
	newID  func() string

	readRetries int
	retryDelay  time.Duration
}

type Option func(*SQLStore)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) { s.now = now }
}

// WithIDGenerator replaces the id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *SQLStore) { s.newID = fn }
}

// WithReadRetries sets how often idempotent reads are retried on persistence failures.
func WithReadRetries(retries int, delay time.Duration) Option {
	return func(s *SQLStore) {
		s.readRetries = retries
		s.retryDelay = delay
	}
}

func NewSQLStore(db *sqlx.DB, log logger.Logger, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:          db,
		logger:      log.WithFields(map[string]interface{}{"component": "store"}),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
		readRetries: apperrors.GetRetryCount(apperrors.ErrCodePersistenceFailed),
		retryDelay:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp truncates to microseconds, the precision both drivers round-trip.
func (s *SQLStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *SQLStore) Create(ctx context.Context, app *models.Application) (*models.Application, error) {
	rec := app.Clone()
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if err := rec.CheckInvariants(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	now := s.timestamp()
	rec.ID = s.newID()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.db.Rebind(insertApplicationSQL),
		rec.ID,
		rec.SubmitterID,
		rec.SubmitterDisplayName,
		rec.ProfileName,
		rec.BackgroundInfo,
		rec.HistoryNotes,
		rec.Motivation,
		rec.PriorIncidents,
		string(rec.Status),
		rec.DiscussionSpaceRef,
		rec.ReviewMessageRef,
		rec.AuditMessageRef,
		rec.ReviewerName,
		rec.RejectionReason,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			s.logger.Info("pending application already exists", map[string]interface{}{
				"submitterId": rec.SubmitterID,
			})
			return nil, apperrors.NewDuplicateApplicationError(rec.SubmitterID, "")
		}
		return nil, apperrors.NewPersistenceError("create", err)
	}

	s.logger.Debug("application created", map[string]interface{}{
		"applicationId": rec.ID,
		"submitterId":   rec.SubmitterID,
	})
	return rec, nil
}

func (s *SQLStore) Update(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		return apperrors.NewNotFoundError("application", "")
	}
	if err := app.CheckInvariants(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(updateApplicationSQL),
		app.SubmitterDisplayName,
		app.ProfileName,
		app.BackgroundInfo,
		app.HistoryNotes,
		app.Motivation,
		app.PriorIncidents,
		string(app.Status),
		app.ReviewerName,
		app.RejectionReason,
		app.DiscussionSpaceRef,
		app.ReviewMessageRef,
		app.AuditMessageRef,
		now,
		app.ID,
		string(app.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewDuplicateApplicationError(app.SubmitterID, "")
		}
		return apperrors.NewPersistenceError("update", err)
	}

	if err := s.checkAffected(ctx, res, app.ID); err != nil {
		return err
	}
	app.UpdatedAt = now
	return nil
}

func (s *SQLStore) Resolve(ctx context.Context, app *models.Application) error {
	if !app.Status.IsTerminal() {
		return apperrors.NewValidationError(fmt.Sprintf("status %q is not a decision", app.Status))
	}
	if err := app.CheckInvariants(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(resolveApplicationSQL),
		string(app.Status),
		app.ReviewerName,
		app.RejectionReason,
		now,
		app.ID,
	)
	if err != nil {
		return apperrors.NewPersistenceError("resolve", err)
	}

	if err := s.checkAffected(ctx, res, app.ID); err != nil {
		return err
	}
	app.UpdatedAt = now
	return nil
}

// checkAffected turns a zero-row conditional update into NotFound or InvalidTransition.
func (s *SQLStore) checkAffected(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("rows affected", err)
	}
	if affected > 0 {
		return nil
	}

	current, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.NewInvalidTransitionError(id, string(current.Status))
}

func (s *SQLStore) FindByID(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	err := s.withReadRetry(ctx, "find by id", func() error {
		return s.db.GetContext(ctx, &app, s.db.Rebind(selectByIDSQL), id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("application", id)
		}
		return nil, apperrors.NewPersistenceError("find by id", err)
	}
	return normalize(&app), nil
}

func (s *SQLStore) FindBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error) {
	return s.selectMany(ctx, "find by submitter", selectBySubmitterSQL, submitterID)
}

func (s *SQLStore) FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error) {
	return s.selectMany(ctx, "find by status", selectByStatusSQL, string(status))
}

func (s *SQLStore) FindPendingBySubmitter(ctx context.Context, submitterID string) (*models.Application, error) {
	var app models.Application
	err := s.withReadRetry(ctx, "find pending", func() error {
		return s.db.GetContext(ctx, &app, s.db.Rebind(selectPendingBySubmitterSQL), submitterID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewPersistenceError("find pending", err)
	}
	return normalize(&app), nil
}

type statusCount struct {
	Status string `db:"status"`
	Total  int    `db:"total"`
}

func (s *SQLStore) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	var rows []statusCount
	err := s.withReadRetry(ctx, "count by status", func() error {
		rows = nil
		return s.db.SelectContext(ctx, &rows, countByStatusSQL)
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError("count by status", err)
	}

	counts := map[models.ApplicationStatus]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, row := range rows {
		counts[models.ApplicationStatus(row.Status)] = row.Total
	}
	return counts, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewPersistenceError("ping", err)
	}
	return nil
}

func (s *SQLStore) selectMany(ctx context.Context, op, query string, arg interface{}) ([]*models.Application, error) {
	var apps []*models.Application
	err := s.withReadRetry(ctx, op, func() error {
		apps = nil
		return s.db.SelectContext(ctx, &apps, s.db.Rebind(query), arg)
	})
	if err != nil {
		return nil, apperrors.NewPersistenceError(op, err)
	}
	for _, app := range apps {
		normalize(app)
	}
	return apps, nil
}

// withReadRetry retries idempotent reads with exponential backoff. Missing rows and
// cancelled contexts are returned immediately.
func (s *SQLStore) withReadRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.readRetries; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, sql.ErrNoRows) || ctx.Err() != nil {
			return err
		}
		if attempt == s.readRetries {
			break
		}

		s.logger.Warn("store read failed, retrying", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"error":     err.Error(),
		})
		select {
		case <-time.After(s.retryDelay * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func normalize(app *models.Application) *models.Application {
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	return app
}
