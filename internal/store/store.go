// Package store persists application records. The store is the only durable arbiter
// of the one-pending-application-per-submitter rule.
package store

import (
	"context"

	"membership-workflow/internal/models"
)

// Store is the persistence contract of the lifecycle. Every operation is atomic for a
// single record. Errors are *errors.StandardError values from internal/common/errors.
type Store interface {
	// Create assigns id and timestamps. A second pending record for the same submitter
	// fails with a duplicate error.
	Create(ctx context.Context, app *models.Application) (*models.Application, error)
	// Update overwrites the mutable fields. Space, review and audit references are set
	// once; a resolved record cannot change status.
	Update(ctx context.Context, app *models.Application) error
	// Resolve writes a decision only if the record is still pending.
	Resolve(ctx context.Context, app *models.Application) error

	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error)
	FindByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.Application, error)
	FindPendingBySubmitter(ctx context.Context, submitterID string) (*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error)

	Ping(ctx context.Context) error
}
