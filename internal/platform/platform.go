// Package platform defines what the workflow needs from the chat platform: restricted
// discussion spaces, messages with actions, direct notices and role checks.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a space or message does not exist on the platform.
var ErrNotFound = errors.New("platform: not found")

// Principal is the acting user as asserted by the platform.
type Principal struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether p holds at least one of roles.
func (p Principal) HasAnyRole(roles []string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Mention renders a user mention in platform markup.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// RoleMention renders a role mention in platform markup.
func RoleMention(role string) string {
	return fmt.Sprintf("<@&%s>", role)
}

// SpaceMention renders a link to a space.
func SpaceMention(spaceRef string) string {
	return fmt.Sprintf("<#%s>", spaceRef)
}

type ActionStyle string

const (
	StylePrimary   ActionStyle = "primary"
	StyleSecondary ActionStyle = "secondary"
	StyleSuccess   ActionStyle = "success"
	StyleDanger    ActionStyle = "danger"
)

// ReasonPrompt asks the clicking user for free text before the action fires.
type ReasonPrompt struct {
	Title     string `json:"title"`
	Label     string `json:"label"`
	MaxLength int    `json:"maxLength"`
	Required  bool   `json:"required"`
}

// Action is an interactive control attached to a message. ID is echoed back by the
// platform when a user triggers it.
type Action struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Style  ActionStyle   `json:"style"`
	Prompt *ReasonPrompt `json:"prompt,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Color       int        `json:"color,omitempty"`
	Fields      []Field    `json:"fields,omitempty"`
	Footer      string     `json:"footer,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Message is the structured content posted to a space or sent as a direct notice.
type Message struct {
	Content string   `json:"content,omitempty"`
	Embeds  []Embed  `json:"embeds,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// SpaceSpec describes a restricted space to create under a parent container.
type SpaceSpec struct {
	ParentRef   string   `json:"parentRef"`
	Name        string   `json:"name"`
	Topic       string   `json:"topic,omitempty"`
	ViewerRoles []string `json:"viewerRoles,omitempty"`
	ViewerUsers []string `json:"viewerUsers,omitempty"`
}

type Space struct {
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	ParentRef string    `json:"parentRef,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Platform is the set of platform capabilities the workflow consumes.
type Platform interface {
	CreateRestrictedSpace(ctx context.Context, spec SpaceSpec) (string, error)
	PostMessage(ctx context.Context, spaceRef string, msg Message) (string, error)
	ClearActions(ctx context.Context, spaceRef, messageRef string) error
	DirectNotify(ctx context.Context, userID string, msg Message) error
	DeleteSpace(ctx context.Context, spaceRef string) error
	GetSpace(ctx context.Context, spaceRef string) (*Space, error)
	ListSpaces(ctx context.Context, parentRef string) ([]Space, error)
	Ping(ctx context.Context) error
}
