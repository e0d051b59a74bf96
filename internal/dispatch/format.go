package dispatch

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxSpaceNameLength = 100
	maxAuditFieldRunes = 500

	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c

	// DateLayout formats dates shown to users.
	DateLayout = "02.01.2006 15:04"
)

var (
	nonNameChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	dashRuns     = regexp.MustCompile(`[-\s]+`)
)

// SpaceName derives the discussion space name from the submitter's display name.
// Symbols are dropped, whitespace and dash runs become a single dash, and the result
// is lower-cased. An empty result falls back to the submitter id.
func SpaceName(prefix, displayName, submitterID string) string {
	clean := nonNameChars.ReplaceAllString(displayName, "")
	clean = dashRuns.ReplaceAllString(clean, "-")
	clean = strings.ToLower(strings.Trim(clean, "-"))
	if clean == "" {
		clean = strings.ToLower(submitterID)
	}

	name := clean
	if prefix != "" {
		name = prefix + "-" + clean
	}
	return truncateRunes(name, maxSpaceNameLength)
}

// StripFences removes a surrounding ``` code fence.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 6 && strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```") {
		return strings.TrimSpace(trimmed[3 : len(trimmed)-3])
	}
	return s
}

// Ellipsize cuts s to max runes and marks the cut with "...".
func Ellipsize(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return truncateRunes(s, max) + "..."
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func fenced(s string) string {
	return "```" + s + "```"
}
