// Package lifecycle drives an application from submission through review to its
// terminal decision.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/lock"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/metrics"
	"membership-workflow/internal/common/observability"
	"membership-workflow/internal/common/validation"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// Steps reported when a multi-step transition stops half way.
const (
	StepCreateSpace   = "create_space"
	StepPostPrompt    = "post_prompt"
	StepPersistRefs   = "persist_refs"
	StepPersistAudit  = "persist_audit_ref"
	StepWriteAuditLog = "write_audit_log"
)

// Dispatcher is the set of side effects the controller requests.
type Dispatcher interface {
	CreateDiscussionSpace(ctx context.Context, app *models.Application) (string, error)
	PostReviewPrompt(ctx context.Context, spaceRef string, app *models.Application) (string, error)
	NotifySubmitter(ctx context.Context, app *models.Application) error
	WriteAuditLog(ctx context.Context, app *models.Application, reviewer platform.Principal) (string, error)
	PostResolution(ctx context.Context, app *models.Application, reviewer platform.Principal) error
	PostClaim(ctx context.Context, app *models.Application, reviewer platform.Principal) error
	ScheduleSpaceTeardown(spaceRef string, delay time.Duration)
	ReportInconsistency(ctx context.Context, inc models.Inconsistency)
}

type Config struct {
	TeardownDelay time.Duration
	CallTimeout   time.Duration
}

type SubmitRequest struct {
	SubmitterID          string
	SubmitterDisplayName string
	Form                 models.ApplicationForm
}

type DecideRequest struct {
	ApplicationID string
	Reviewer      platform.Principal
	Decision      models.Decision
	Reason        string
}

type ClaimRequest struct {
	ApplicationID string
	Reviewer      platform.Principal
}

// Controller enacts the submit, decide and claim transitions. It keeps no state
// between calls; the store is the only arbiter across processes.
type Controller struct {
	config     *Config
	store      store.Store
	dispatcher Dispatcher
	authorizer platform.Authorizer
	locker     lock.Locker
	validator  *validation.FormValidator
	obs        *observability.Observability
	logger     logger.Logger
	now        func() time.Time
}

type Option func(*Controller)

func WithLocker(l lock.Locker) Option {
	return func(c *Controller) { c.locker = l }
}

func WithObservability(obs *observability.Observability) Option {
	return func(c *Controller) { c.obs = obs }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(
	config *Config,
	st store.Store,
	dispatcher Dispatcher,
	authorizer platform.Authorizer,
	log logger.Logger,
	opts ...Option,
) (*Controller, error) {
	validator, err := validation.NewFormValidator()
	if err != nil {
		return nil, err
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 10 * time.Second
	}
	if config.TeardownDelay < 0 {
		config.TeardownDelay = 0
	}

	c := &Controller{
		config:     config,
		store:      st,
		dispatcher: dispatcher,
		authorizer: authorizer,
		locker:     lock.NewLocalLocker(),
		validator:  validator,
		logger:     log.WithFields(map[string]interface{}{"component": "lifecycle"}),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit validates the form, refuses a second pending application of the same
// submitter, persists the new record and provisions its discussion space. Failures
// after the record is persisted leave it pending and are reported to operators; the
// record is still returned.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (app *models.Application, err error) {
	ctx, finish := c.begin(ctx, "submit", attribute.String("submitterId", req.SubmitterID))
	defer func() { finish(err) }()

	if strings.TrimSpace(req.SubmitterID) == "" {
		return nil, apperrors.NewValidationError("submitter id is required")
	}
	form := req.Form.Normalize()
	if res := c.validator.ValidateForm(form); !res.Valid {
		return nil, apperrors.NewFieldValidationError(res.FieldMessages())
	}

	existing, err := c.findPending(ctx, req.SubmitterID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.ApplicationsDuplicate.Inc()
		return nil, apperrors.NewDuplicateApplicationError(req.SubmitterID, existing.ID)
	}

	created, err := c.create(ctx, models.NewApplication(req.SubmitterID, req.SubmitterDisplayName, form))
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			metrics.ApplicationsDuplicate.Inc()
		}
		return nil, err
	}
	metrics.ApplicationsSubmitted.Inc()
	c.logger.Info("application submitted", map[string]interface{}{
		"applicationId": created.ID,
		"submitterId":   created.SubmitterID,
	})

	c.provision(ctx, created)
	return created, nil
}

// provision creates the discussion space and review prompt of a freshly persisted
// application and stores their references.
func (c *Controller) provision(ctx context.Context, app *models.Application) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	spaceRef, err := c.dispatcher.CreateDiscussionSpace(callCtx, app)
	cancel()
	if err != nil {
		c.inconsistent(ctx, app, StepCreateSpace, err)
		return
	}
	app.DiscussionSpaceRef = spaceRef

	callCtx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
	reviewRef, err := c.dispatcher.PostReviewPrompt(callCtx, spaceRef, app)
	cancel()
	if err != nil {
		c.inconsistent(ctx, app, StepPostPrompt, err)
	} else {
		app.ReviewMessageRef = reviewRef
	}

	callCtx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
	err = c.store.Update(callCtx, app)
	cancel()
	if err != nil {
		c.inconsistent(ctx, app, StepPersistRefs, err)
	}
}

// Decide records a reviewer's decision on a pending application. The check and the
// write form one critical section per application, and the store only accepts the
// write while the record is still pending, so exactly one concurrent decision wins.
func (c *Controller) Decide(ctx context.Context, req DecideRequest) (app *models.Application, err error) {
	ctx, finish := c.begin(ctx, "decide",
		attribute.String("applicationId", req.ApplicationID),
		attribute.String("decision", string(req.Decision)),
	)
	defer func() { finish(err) }()

	if !c.authorizer.CanReview(req.Reviewer) {
		return nil, apperrors.NewAuthorizationError(req.Reviewer.ID, "review")
	}
	if !req.Decision.Valid() {
		return nil, apperrors.NewValidationError("decision must be approved or rejected")
	}

	release, err := c.locker.Acquire(ctx, "decide:"+req.ApplicationID)
	if err != nil {
		return nil, apperrors.NewPersistenceError("acquire decision lock", err)
	}
	defer release()

	app, err = c.findByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPending {
		return nil, apperrors.NewInvalidTransitionError(app.ID, string(app.Status))
	}

	reason := ""
	if req.Decision == models.DecisionRejected {
		reason = strings.TrimSpace(req.Reason)
		if res := validation.ValidateRejectionReason(reason); !res.Valid {
			return nil, apperrors.NewFieldValidationError(res.FieldMessages())
		}
	}

	app.Status = req.Decision.Status()
	app.ReviewerName = reviewerName(req.Reviewer)
	app.RejectionReason = reason

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	err = c.store.Resolve(callCtx, app)
	cancel()
	release()
	if err != nil {
		return nil, err
	}

	metrics.ApplicationsDecided.WithLabelValues(string(req.Decision)).Inc()
	c.logger.Info("application resolved", map[string]interface{}{
		"applicationId": app.ID,
		"status":        string(app.Status),
		"reviewerId":    req.Reviewer.ID,
	})

	c.announce(context.WithoutCancel(ctx), app, req.Reviewer)
	return app, nil
}

// announce runs the post-decision side effects. None of them can undo the decision.
func (c *Controller) announce(ctx context.Context, app *models.Application, reviewer platform.Principal) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	_ = c.dispatcher.NotifySubmitter(callCtx, app)
	cancel()

	callCtx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
	auditRef, err := c.dispatcher.WriteAuditLog(callCtx, app, reviewer)
	cancel()
	if err != nil {
		c.logger.Warn("audit log incomplete", map[string]interface{}{
			"applicationId": app.ID,
			"step":          StepWriteAuditLog,
			"error":         err.Error(),
		})
	}
	if auditRef != "" {
		app.AuditMessageRef = auditRef
		callCtx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
		err = c.store.Update(callCtx, app)
		cancel()
		if err != nil {
			c.logger.Warn("failed to store audit reference", map[string]interface{}{
				"applicationId": app.ID,
				"step":          StepPersistAudit,
				"error":         err.Error(),
			})
		}
	}

	callCtx, cancel = context.WithTimeout(ctx, c.config.CallTimeout)
	_ = c.dispatcher.PostResolution(callCtx, app, reviewer)
	cancel()

	c.dispatcher.ScheduleSpaceTeardown(app.DiscussionSpaceRef, c.config.TeardownDelay)
}

// Claim announces in the discussion space that a reviewer took the application. The
// record is not changed.
func (c *Controller) Claim(ctx context.Context, req ClaimRequest) (app *models.Application, err error) {
	ctx, finish := c.begin(ctx, "claim", attribute.String("applicationId", req.ApplicationID))
	defer func() { finish(err) }()

	if !c.authorizer.CanReview(req.Reviewer) {
		return nil, apperrors.NewAuthorizationError(req.Reviewer.ID, "review")
	}

	app, err = c.findByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusPending {
		return nil, apperrors.NewInvalidTransitionError(app.ID, string(app.Status))
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()
	if err := c.dispatcher.PostClaim(callCtx, app, req.Reviewer); err != nil {
		return nil, err
	}
	return app, nil
}

// ListPending returns the pending applications, newest first.
func (c *Controller) ListPending(ctx context.Context) ([]*models.Application, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	apps, err := c.store.FindByStatus(callCtx, models.StatusPending)
	if err != nil {
		return nil, err
	}
	metrics.ApplicationsPending.Set(float64(len(apps)))
	return apps, nil
}

// ListBySubmitter returns every application of submitterID, newest first.
func (c *Controller) ListBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()
	return c.store.FindBySubmitter(callCtx, submitterID)
}

func (c *Controller) findPending(ctx context.Context, submitterID string) (*models.Application, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()
	return c.store.FindPendingBySubmitter(callCtx, submitterID)
}

func (c *Controller) findByID(ctx context.Context, id string) (*models.Application, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()
	return c.store.FindByID(callCtx, id)
}

func (c *Controller) create(ctx context.Context, app *models.Application) (*models.Application, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()
	return c.store.Create(callCtx, app)
}

func (c *Controller) inconsistent(ctx context.Context, app *models.Application, step string, err error) {
	c.logger.Error("application provisioning incomplete", map[string]interface{}{
		"applicationId": app.ID,
		"step":          step,
		"error":         err.Error(),
	})
	c.dispatcher.ReportInconsistency(context.WithoutCancel(ctx), models.Inconsistency{
		ApplicationID: app.ID,
		SubmitterID:   app.SubmitterID,
		Step:          step,
		Error:         err.Error(),
		DetectedAt:    c.now(),
	})
}

// begin opens a span for operation and returns the function that closes it and
// records the outcome.
func (c *Controller) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := c.obs.StartSpan(ctx, "lifecycle."+operation, attrs...)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.CodeOf(err))
		}
		c.obs.RecordOperation(ctx, operation, outcome, time.Since(start))
		observability.EndSpan(span, err)
	}
}

func reviewerName(p platform.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
