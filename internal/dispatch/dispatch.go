// Package dispatch performs the side effects of the application lifecycle on the chat
// platform and the audit sinks. Only space creation and the review prompt report
// failures to the caller; every other step is best-effort and logged.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "membership-workflow/internal/common/errors"
	"membership-workflow/internal/common/logger"
	"membership-workflow/internal/common/metrics"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/pkg/registry"
)

// Action kinds attached to the review prompt.
const (
	ActionApprove = "approve"
	ActionClaim   = "claim"
	ActionReject  = "reject"
	ActionApply   = "apply"
)

// ActionID builds the identifier the platform echoes back when an action is used.
func ActionID(kind, applicationID string) string {
	return kind + ":" + applicationID
}

// ParseActionID splits an identifier built by ActionID.
func ParseActionID(id string) (kind, applicationID string, ok bool) {
	kind, applicationID, ok = strings.Cut(id, ":")
	return kind, applicationID, ok && kind != "" && applicationID != ""
}

type Config struct {
	ParentContainer string
	SpacePrefix     string
	LogSpace        string
	ReviewerRoles   []string
	HistoryLimit    int
	CallTimeout     time.Duration
}

// HistorySource lists a submitter's applications, newest first.
type HistorySource interface {
	FindBySubmitter(ctx context.Context, submitterID string) ([]*models.Application, error)
}

// AuditSink receives one entry per resolution. A non-empty reference identifies the
// written entry for later linking.
type AuditSink interface {
	Name() string
	Append(ctx context.Context, entry models.AuditEntry) (string, error)
}

// Alerter delivers operator alerts.
type Alerter interface {
	Name() string
	Alert(ctx context.Context, subject, body string) error
}

type Dispatcher struct {
	config    *Config
	platform  platform.Platform
	history   HistorySource
	templates *registry.TemplateRegistry
	sinks     []AuditSink
	alerters  []Alerter
	logger    logger.Logger
	now       func() time.Time

	teardowns sync.WaitGroup
}

type Option func(*Dispatcher)

// WithAuditSinks adds sinks after the platform log space.
func WithAuditSinks(sinks ...AuditSink) Option {
	return func(d *Dispatcher) { d.sinks = append(d.sinks, sinks...) }
}

func WithAlerters(alerters ...Alerter) Option {
	return func(d *Dispatcher) { d.alerters = append(d.alerters, alerters...) }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	config *Config,
	p platform.Platform,
	history HistorySource,
	templates *registry.TemplateRegistry,
	log logger.Logger,
	opts ...Option,
) *Dispatcher {
	if templates == nil {
		templates = registry.Defaults()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 5
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		config:    config,
		platform:  p,
		history:   history,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if config.LogSpace != "" {
		d.sinks = append(d.sinks, &platformLogSink{d: d})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Templates exposes the message templates shared with the command handlers.
func (d *Dispatcher) Templates() *registry.TemplateRegistry {
	return d.templates
}

// CreateDiscussionSpace creates the restricted space for app, visible to the reviewer
// roles and the submitter.
func (d *Dispatcher) CreateDiscussionSpace(ctx context.Context, app *models.Application) (string, error) {
	spec := platform.SpaceSpec{
		ParentRef: d.config.ParentContainer,
		Name:      SpaceName(d.config.SpacePrefix, app.SubmitterDisplayName, app.SubmitterID),
		Topic: d.templates.Render(registry.KeySpaceTopic, map[string]interface{}{
			"profileName": app.ProfileName,
			"displayName": app.SubmitterDisplayName,
			"submitterId": app.SubmitterID,
		}),
		ViewerRoles: d.config.ReviewerRoles,
		ViewerUsers: []string{app.SubmitterID},
	}

	ref, err := d.platform.CreateRestrictedSpace(ctx, spec)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues("create_space").Inc()
		return "", apperrors.NewResourceError("create space", err).
			WithMetadata("applicationId", app.ID)
	}

	d.logger.Info("discussion space created", map[string]interface{}{
		"applicationId": app.ID,
		"spaceRef":      ref,
		"spaceName":     spec.Name,
	})
	return ref, nil
}

// PostReviewPrompt posts the application card with the approve, claim and reject
// actions into spaceRef.
func (d *Dispatcher) PostReviewPrompt(ctx context.Context, spaceRef string, app *models.Application) (string, error) {
	mentions := make([]string, 0, len(d.config.ReviewerRoles))
	for _, role := range d.config.ReviewerRoles {
		mentions = append(mentions, platform.RoleMention(role))
	}

	msg := platform.Message{
		Content: strings.TrimSpace(d.templates.Render(registry.KeyReviewHeader, map[string]interface{}{
			"mentions": strings.Join(mentions, " "),
		})),
		Embeds:  []platform.Embed{d.reviewCard(ctx, app)},
		Actions: d.reviewActions(app.ID),
	}

	ref, err := d.platform.PostMessage(ctx, spaceRef, msg)
	if err != nil {
		metrics.DispatchFailures.WithLabelValues("post_prompt").Inc()
		return "", apperrors.NewResourceError("post review prompt", err).
			WithMetadata("applicationId", app.ID)
	}
	return ref, nil
}

func (d *Dispatcher) reviewCard(ctx context.Context, app *models.Application) platform.Embed {
	created := app.CreatedAt
	return platform.Embed{
		Title:     d.templates.RenderTitle(registry.KeyReviewCard, nil),
		Color:     colorBlue,
		Timestamp: &created,
		Fields: []platform.Field{
			{Name: "Profile name", Value: fenced(app.ProfileName)},
			{Name: "Background", Value: fenced(app.BackgroundInfo)},
			{Name: "History", Value: fenced(app.HistoryNotes)},
			{Name: "Motivation", Value: fenced(app.Motivation)},
			{Name: "Prior incidents", Value: StripFences(app.PriorIncidents)},
			{Name: "User", Value: platform.Mention(app.SubmitterID)},
			{Name: "Username", Value: fenced(app.SubmitterDisplayName), Inline: true},
			{Name: "ID", Value: fenced(app.SubmitterID), Inline: true},
			{Name: "Previous applications", Value: d.historySummary(ctx, app)},
		},
	}
}

// historySummary lists earlier resolved applications of the submitter, linking their
// audit entries where one was recorded.
func (d *Dispatcher) historySummary(ctx context.Context, app *models.Application) string {
	none := d.templates.Render(registry.KeyReviewNoHistory, nil)
	if d.history == nil {
		return none
	}

	apps, err := d.history.FindBySubmitter(ctx, app.SubmitterID)
	if err != nil {
		d.logger.Warn("failed to load submitter history", map[string]interface{}{
			"applicationId": app.ID,
			"error":         err.Error(),
		})
		return none
	}

	lines := make([]string, 0, d.config.HistoryLimit)
	for _, prev := range apps {
		if prev.ID == app.ID || !prev.Status.IsTerminal() {
			continue
		}
		icon := "❌"
		if prev.Status == models.StatusApproved {
			icon = "✅"
		}
		line := fmt.Sprintf("%s %s", icon, prev.CreatedAt.Format(DateLayout))
		if prev.AuditMessageRef != "" {
			line += " " + d.auditReference(prev.AuditMessageRef)
		}
		lines = append(lines, line)
		if len(lines) == d.config.HistoryLimit {
			break
		}
	}
	if len(lines) == 0 {
		return none
	}
	return strings.Join(lines, "\n")
}

// auditReference renders an audit post ref together with the log space it lives in.
func (d *Dispatcher) auditReference(messageRef string) string {
	if d.config.LogSpace == "" {
		return fmt.Sprintf("(log entry %s)", messageRef)
	}
	return fmt.Sprintf("(log entry %s in %s)", messageRef, platform.SpaceMention(d.config.LogSpace))
}

func (d *Dispatcher) reviewActions(applicationID string) []platform.Action {
	prompt := d.templates.Get(registry.KeyRejectPrompt)
	return []platform.Action{
		{
			ID:    ActionID(ActionApprove, applicationID),
			Label: d.templates.Label(registry.KeyActionApprove),
			Style: platform.StyleSuccess,
		},
		{
			ID:    ActionID(ActionClaim, applicationID),
			Label: d.templates.Label(registry.KeyActionClaim),
			Style: platform.StylePrimary,
		},
		{
			ID:     ActionID(ActionReject, applicationID),
			Label:  d.templates.Label(registry.KeyActionReject),
			Style:  platform.StyleDanger,
			Prompt: &platform.ReasonPrompt{
				Title:     prompt.Title,
				Label:     prompt.Label,
				MaxLength: models.MaxRejectionReasonLength,
				Required:  true,
			},
		},
	}
}

// NotifySubmitter sends the decision to the submitter as a direct notice. Failures are
// logged and returned for information only.
func (d *Dispatcher) NotifySubmitter(ctx context.Context, app *models.Application) error {
	key := registry.KeyNoticeApproved
	if app.Status == models.StatusRejected {
		key = registry.KeyNoticeRejected
	}
	msg := platform.Message{
		Content: d.templates.Render(key, map[string]interface{}{"reason": app.RejectionReason}),
	}

	if err := d.platform.DirectNotify(ctx, app.SubmitterID, msg); err != nil {
		d.stepFailed("notify", app, err)
		return err
	}
	return nil
}

// PostResolution announces the decision in the discussion space and removes the
// actions from the review prompt.
func (d *Dispatcher) PostResolution(ctx context.Context, app *models.Application, reviewer platform.Principal) error {
	if app.DiscussionSpaceRef == "" {
		return nil
	}

	key := registry.KeyResolvedApproved
	if app.Status == models.StatusRejected {
		key = registry.KeyResolvedRejected
	}
	msg := platform.Message{
		Content: d.templates.Render(key, map[string]interface{}{
			"reviewer": platform.Mention(reviewer.ID),
			"reason":   app.RejectionReason,
		}),
	}

	var errs []error
	if _, err := d.platform.PostMessage(ctx, app.DiscussionSpaceRef, msg); err != nil {
		d.stepFailed("post_resolution", app, err)
		errs = append(errs, err)
	}
	if app.ReviewMessageRef != "" {
		if err := d.platform.ClearActions(ctx, app.DiscussionSpaceRef, app.ReviewMessageRef); err != nil {
			d.stepFailed("clear_actions", app, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PostClaim announces that reviewer took the application for review.
func (d *Dispatcher) PostClaim(ctx context.Context, app *models.Application, reviewer platform.Principal) error {
	if app.DiscussionSpaceRef == "" {
		return apperrors.NewResourceError("post claim", fmt.Errorf("application %s has no discussion space", app.ID))
	}
	msg := platform.Message{
		Content: d.templates.Render(registry.KeyClaimed, map[string]interface{}{
			"reviewer": platform.Mention(reviewer.ID),
		}),
	}
	if _, err := d.platform.PostMessage(ctx, app.DiscussionSpaceRef, msg); err != nil {
		d.stepFailed("post_claim", app, err)
		return apperrors.NewResourceError("post claim", err)
	}
	return nil
}

// ScheduleSpaceTeardown deletes spaceRef after delay without blocking the caller.
func (d *Dispatcher) ScheduleSpaceTeardown(spaceRef string, delay time.Duration) {
	if spaceRef == "" {
		return
	}

	d.teardowns.Add(1)
	time.AfterFunc(delay, func() {
		defer d.teardowns.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.config.CallTimeout)
		defer cancel()

		err := d.platform.DeleteSpace(ctx, spaceRef)
		switch {
		case err == nil:
			d.logger.Info("discussion space deleted", map[string]interface{}{"spaceRef": spaceRef})
		case errors.Is(err, platform.ErrNotFound):
			d.logger.Debug("discussion space already gone", map[string]interface{}{"spaceRef": spaceRef})
		default:
			metrics.DispatchFailures.WithLabelValues("teardown").Inc()
			d.logger.Warn("failed to delete discussion space", map[string]interface{}{
				"spaceRef": spaceRef,
				"error":    err.Error(),
			})
		}
	})
}

// Wait blocks until every scheduled teardown has run.
func (d *Dispatcher) Wait() {
	d.teardowns.Wait()
}

// ReportInconsistency logs a half-finished transition and alerts the operators.
func (d *Dispatcher) ReportInconsistency(ctx context.Context, inc models.Inconsistency) {
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = d.now()
	}
	d.logger.Error("application left inconsistent", map[string]interface{}{
		"applicationId": inc.ApplicationID,
		"submitterId":   inc.SubmitterID,
		"step":          inc.Step,
		"error":         inc.Error,
	})

	data := map[string]interface{}{
		"applicationId": inc.ApplicationID,
		"submitterId":   inc.SubmitterID,
		"step":          inc.Step,
		"error":         inc.Error,
	}
	subject := d.templates.RenderTitle(registry.KeyInconsistencyAlert, data)
	body := d.templates.Render(registry.KeyInconsistencyAlert, data)

	for _, alerter := range d.alerters {
		if err := alerter.Alert(ctx, subject, body); err != nil {
			metrics.DispatchFailures.WithLabelValues("alert_" + alerter.Name()).Inc()
			d.logger.Warn("failed to deliver operator alert", map[string]interface{}{
				"alerter":       alerter.Name(),
				"applicationId": inc.ApplicationID,
				"error":         err.Error(),
			})
		}
	}
}

func (d *Dispatcher) stepFailed(step string, app *models.Application, err error) {
	metrics.DispatchFailures.WithLabelValues(step).Inc()
	d.logger.Warn("dispatch step failed", map[string]interface{}{
		"step":          step,
		"applicationId": app.ID,
		"error":         err.Error(),
	})
}
