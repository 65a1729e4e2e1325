package content

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	policy        = bluemonday.UGCPolicy()
	textPolicy    = bluemonday.StrictPolicy()
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	markdown      = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
)

// Sanitize removes unsafe HTML from the input string using a strict policy.
// Applied to message bodies received from the wire before display.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Render converts message markdown to sanitized HTML for display.
func Render(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// RenderText converts message markdown to plain text for terminal display:
// markup is interpreted and dropped rather than shown literally. Inputs that
// fail to render fall back to plain sanitization.
func RenderText(input string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return Sanitize(input)
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(buf.String())))
}

// ValidateUsername checks if the username contains only allowed characters
// (alphanumeric, dot, dash, underscore) and is not empty.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username cannot be empty")
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("username contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}

// ValidateMessage rejects empty or whitespace-only message bodies.
func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("message cannot be empty")
	}
	return nil
}
