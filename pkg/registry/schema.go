// pkg/registry/schema.go
package registry

// TemplateRegistry is the on-disk shape of the message template file.
type TemplateRegistry struct {
	Version     string              `json:"version"`
	LastUpdated string              `json:"lastUpdated"`
	Templates   map[string]Template `json:"templates"`
}

// Template is one user-facing message. Title is used where the platform renders a
// card; Body is the text. Both may contain {{placeholder}} references.
type Template struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	Label string `json:"label,omitempty"`
}
