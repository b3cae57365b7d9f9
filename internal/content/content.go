package content

import (
	"bytes"
	"errors"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy     = bluemonday.UGCPolicy()
	userIDRe   = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	markdown   = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// It is used for sanitizing HTML produced from user-supplied messages.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// RenderHTML converts a markdown message body to sanitized HTML. Messages
// that fail to render fall back to escaped text.
func RenderHTML(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return Escape(input)
	}
	return Sanitize(buf.String())
}

// ValidateUserID checks if the id contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUserID(id string) error {
	if id == "" {
		return errors.New("user id cannot be empty")
	}
	if !userIDRe.MatchString(id) {
		return errors.New("user id contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
