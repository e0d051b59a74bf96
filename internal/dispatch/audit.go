package dispatch

import (
	"context"
	"errors"
	"fmt"

	"membership-workflow/internal/common/metrics"
	"membership-workflow/internal/models"
	"membership-workflow/internal/platform"
	"membership-workflow/pkg/registry"
)

// WriteAuditLog records the resolution of app in every audit sink. It returns the
// first non-empty reference a sink produced. Sink failures are joined into the
// returned error, which callers log but never propagate.
func (d *Dispatcher) WriteAuditLog(ctx context.Context, app *models.Application, reviewer platform.Principal) (string, error) {
	entry := models.NewAuditEntry(app, reviewer.ID, d.now())

	var (
		ref  string
		errs []error
	)
	for _, sink := range d.sinks {
		sinkRef, err := sink.Append(ctx, entry)
		if err != nil {
			metrics.DispatchFailures.WithLabelValues("audit_" + sink.Name()).Inc()
			d.logger.Warn("audit sink failed", map[string]interface{}{
				"sink":          sink.Name(),
				"applicationId": app.ID,
				"error":         err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		if ref == "" {
			ref = sinkRef
		}
	}
	return ref, errors.Join(errs...)
}

// platformLogSink posts the audit card to the configured log space.
type platformLogSink struct {
	d *Dispatcher
}

func (s *platformLogSink) Name() string { return "platform" }

func (s *platformLogSink) Append(ctx context.Context, entry models.AuditEntry) (string, error) {
	return s.d.platform.PostMessage(ctx, s.d.config.LogSpace, platform.Message{
		Embeds: []platform.Embed{AuditCard(s.d.templates, entry)},
	})
}

// AuditCard renders entry for the log space. Long answers are cut to 500 characters
// and prior incidents are left out when the submitter did not fill them in.
func AuditCard(templates *registry.TemplateRegistry, entry models.AuditEntry) platform.Embed {
	approved := entry.Status == models.StatusApproved
	titleKey, color, actor := registry.KeyAuditApproved, colorGreen, "Approved by"
	if !approved {
		titleKey, color, actor = registry.KeyAuditRejected, colorRed, "Rejected by"
	}

	form := entry.Form
	fields := []platform.Field{
		{Name: "Profile name", Value: form.ProfileName},
		{Name: "Background", Value: form.BackgroundInfo},
		{Name: "History", Value: Ellipsize(form.HistoryNotes, maxAuditFieldRunes)},
	}
	if form.Motivation != "" {
		fields = append(fields, platform.Field{Name: "Motivation", Value: Ellipsize(form.Motivation, maxAuditFieldRunes)})
	}
	if form.PriorIncidents != "" && form.PriorIncidents != models.PriorIncidentsDefault {
		fields = append(fields, platform.Field{
			Name:  "Prior incidents",
			Value: Ellipsize(StripFences(form.PriorIncidents), maxAuditFieldRunes),
		})
	}
	fields = append(fields,
		platform.Field{Name: "User", Value: platform.Mention(entry.SubmitterID)},
		platform.Field{Name: "Username", Value: entry.SubmitterName, Inline: true},
		platform.Field{Name: "ID", Value: entry.SubmitterID, Inline: true},
		platform.Field{Name: actor, Value: platform.Mention(entry.ReviewerID)},
	)
	if !approved {
		fields = append(fields, platform.Field{
			Name:  "Rejection reason",
			Value: Ellipsize(entry.RejectionReason, maxAuditFieldRunes),
		})
	}

	at := entry.OccurredAt
	return platform.Embed{
		Title:     templates.RenderTitle(titleKey, nil),
		Color:     color,
		Fields:    fields,
		Footer:    entry.ApplicationID,
		Timestamp: &at,
	}
}

// DocumentIndexer stores JSON documents by id.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// SearchSink mirrors audit entries into a search index.
type SearchSink struct {
	indexer DocumentIndexer
	index   string
}

func NewSearchSink(indexer DocumentIndexer, index string) *SearchSink {
	return &SearchSink{indexer: indexer, index: index}
}

func (s *SearchSink) Name() string { return "elasticsearch" }

func (s *SearchSink) Append(ctx context.Context, entry models.AuditEntry) (string, error) {
	id := entry.ApplicationID + ":" + entry.EventType
	if err := s.indexer.IndexDocument(ctx, s.index, id, entry); err != nil {
		return "", err
	}
	return "", nil
}
