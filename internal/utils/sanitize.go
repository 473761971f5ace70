package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// textPolicy strips all markup. Free-text fields are stored as plain text.
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText removes HTML from user supplied text and trims surrounding
// whitespace.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(textPolicy.Sanitize(s))
}

// SanitizeTextPtr is SanitizeText for optional fields.
func SanitizeTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := SanitizeText(*s)
	return &clean
}
