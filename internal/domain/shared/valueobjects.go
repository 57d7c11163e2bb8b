// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// maxIDLength bounds external identifiers (student numbers, course codes, UUIDs).
const maxIDLength = 64

// RequireID validates an identifier received from a caller.
// Identifiers are opaque: the core never parses them.
func RequireID(field, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return fmt.Errorf("%s: %w", field, ErrEmptyValue)
	}
	if v != value || utf8.RuneCountInString(v) > maxIDLength {
		return fmt.Errorf("%s %q: %w", field, value, ErrInvalidID)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Reason
// ═══════════════════════════════════════════════════════════════════════════

// maxReasonLength bounds free-form notes attached to transitions.
const maxReasonLength = 2000

// Reason is a free-form justification attached to corrective transitions.
type Reason string

// NewReason trims the text and rejects blank reasons.
func NewReason(text string) (Reason, error) {
	r := Reason(strings.TrimSpace(text))
	if r.IsEmpty() {
		return "", ErrReasonRequired
	}
	if utf8.RuneCountInString(string(r)) > maxReasonLength {
		return "", fmt.Errorf("reason longer than %d characters: %w", maxReasonLength, ErrInvalidInput)
	}
	return r, nil
}

// IsEmpty reports whether the reason carries no text.
func (r Reason) IsEmpty() bool {
	return strings.TrimSpace(string(r)) == ""
}

// String returns the string representation.
func (r Reason) String() string {
	return string(r)
}
