package util

import (
	"regexp"
	"strings"
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidUsername accepts letters, digits and underscores only.
func ValidUsername(s string) bool { return usernameRe.MatchString(s) }

func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// NormalizeLogin lowercases and trims a username or email.
func NormalizeLogin(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
