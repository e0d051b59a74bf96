// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Template keys.
const (
	KeyPanel              = "panel"
	KeySubmitted          = "application.submitted"
	KeyReviewHeader       = "review.header"
	KeyReviewCard         = "review.card"
	KeyReviewNoHistory    = "review.no_history"
	KeyActionApprove      = "action.approve"
	KeyActionClaim        = "action.claim"
	KeyActionReject       = "action.reject"
	KeyRejectPrompt       = "action.reject.prompt"
	KeyClaimed            = "review.claimed"
	KeyResolvedApproved   = "resolution.approved"
	KeyResolvedRejected   = "resolution.rejected"
	KeyNoticeApproved     = "notice.approved"
	KeyNoticeRejected     = "notice.rejected"
	KeyAuditApproved      = "audit.approved"
	KeyAuditRejected      = "audit.rejected"
	KeySpaceTopic         = "space.topic"
	KeyInconsistencyAlert = "alert.inconsistency"
	KeyStatusTitle        = "status.title"
	KeyStatusNone         = "status.none"
	KeyListTitle          = "list.title"
	KeyListNoSpace        = "list.no_space"
	KeyHealthOK           = "health.ok"
	KeyCleanupDone        = "cleanup.done"
	KeySpaceDeleted       = "space.deleted"
	KeySpaceRequired      = "space.required"
)

var defaultTemplates = map[string]Template{
	KeyPanel: {
		Title: "MEMBERSHIP APPLICATION",
		Body: "Your way into the community starts here.\n\n" +
			"After you submit the form the bot sends you the result in a direct message " +
			"(no message arrives if your direct messages are closed).\n\n" +
			"Applications are reviewed within a day.",
		Label: "Apply",
	},
	KeySubmitted: {
		Body: "Your application was submitted.\n\n" +
			"It is reviewed within a day and the answer arrives as a direct message from the bot.\n" +
			"A discussion space was created for it: {{space}}",
	},
	KeyReviewHeader:    {Body: "{{mentions}} New application!"},
	KeyReviewCard:      {Title: "Application"},
	KeyReviewNoHistory: {Body: "No applications found."},
	KeyActionApprove:   {Label: "Approve"},
	KeyActionClaim:     {Label: "Take for review"},
	KeyActionReject:    {Label: "Reject"},
	KeyRejectPrompt:    {Title: "Rejection reason", Label: "State the reason for rejection"},
	KeyClaimed:         {Body: "**Application taken for review by {{reviewer}}**"},
	KeyResolvedApproved: {
		Body: "**Application approved by {{reviewer}}**",
	},
	KeyResolvedRejected: {
		Body: "**Application rejected by {{reviewer}}**\n**Reason:** {{reason}}",
	},
	KeyNoticeApproved: {
		Body: "**You have been accepted!**\n\nWelcome aboard. Wait for further instructions from the staff.",
	},
	KeyNoticeRejected: {
		Body: "**Your application was rejected.**\n\n**Reason:** {{reason}}\n\n" +
			"You can apply again once the points above are addressed.",
	},
	KeyAuditApproved:      {Title: "✅ Application approved"},
	KeyAuditRejected:      {Title: "❌ Application rejected"},
	KeySpaceTopic:         {Body: "Application from {{profileName}} | User: {{displayName}} | ID: {{submitterId}}"},
	KeyInconsistencyAlert: {Title: "Application {{applicationId}} needs attention", Body: "Step {{step}} failed for application {{applicationId}} of submitter {{submitterId}}: {{error}}"},
	KeyStatusTitle:        {Title: "Applications of {{user}}"},
	KeyStatusNone:         {Body: "No applications found."},
	KeyListTitle:          {Title: "📋 Active applications"},
	KeyListNoSpace:        {Body: "no discussion space"},
	KeyHealthOK:           {Body: "✅ Bot is running! Latency: {{latency}}ms"},
	KeyCleanupDone:        {Body: "✅ Deleted {{deleted}} old application spaces."},
	KeySpaceDeleted:       {Body: "✅ Space {{name}} deleted."},
	KeySpaceRequired:      {Body: "Name a space or run the command inside an application space."},
}

// Defaults returns the built-in templates.
func Defaults() *TemplateRegistry {
	templates := make(map[string]Template, len(defaultTemplates))
	for k, v := range defaultTemplates {
		templates[k] = v
	}
	return &TemplateRegistry{Version: "builtin", Templates: templates}
}

// LoadRegistry reads a JSON template file and layers it over the built-in templates.
// An empty path yields the defaults.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	reg := Defaults()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var override TemplateRegistry
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse template registry %s: %w", path, err)
	}

	for key, tmpl := range override.Templates {
		base := reg.Templates[key]
		if tmpl.Title != "" {
			base.Title = tmpl.Title
		}
		if tmpl.Body != "" {
			base.Body = tmpl.Body
		}
		if tmpl.Label != "" {
			base.Label = tmpl.Label
		}
		reg.Templates[key] = base
	}
	if override.Version != "" {
		reg.Version = override.Version
	}
	reg.LastUpdated = override.LastUpdated
	return reg, nil
}

// Get returns the template for key, or an empty template for unknown keys.
func (r *TemplateRegistry) Get(key string) Template {
	if r == nil {
		return defaultTemplates[key]
	}
	return r.Templates[key]
}

// Render fills the body of key with data.
func (r *TemplateRegistry) Render(key string, data map[string]interface{}) string {
	return RenderTemplate(r.Get(key).Body, data)
}

// RenderTitle fills the title of key with data.
func (r *TemplateRegistry) RenderTitle(key string, data map[string]interface{}) string {
	return RenderTemplate(r.Get(key).Title, data)
}

// Label returns the action label of key.
func (r *TemplateRegistry) Label(key string) string {
	return r.Get(key).Label
}

// RenderTemplate replaces {{key}} placeholders with values from data. Placeholders
// without a value are removed.
func RenderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if i, ok := v.(int); ok {
			value = fmt.Sprintf("%d", i)
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}
