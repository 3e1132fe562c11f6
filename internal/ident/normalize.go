// Package ident normalizes identity fields and derives the stable names and
// IDs used across a roster: canonical emails and usernames, import header
// keys, repository slugs, and collision-resistant short IDs.
package ident

import (
	"regexp"
	"strings"
)

// nonAlphanumericRun matches any run of characters that are not ASCII letters or digits.
var nonAlphanumericRun = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeGitUsername lowercases and trims a git platform username.
func NormalizeGitUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHeader turns a spreadsheet column header into a comparable key:
// "Student Number" and "student-number" both become "student_number".
func NormalizeHeader(s string) string {
	key := nonAlphanumericRun.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(key, "_")
}
