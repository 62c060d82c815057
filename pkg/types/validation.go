package types

import (
	"strings"
	"time"
)

// NormalizeOptions trims every option and drops the ones that end up empty,
// preserving order.
func NormalizeOptions(options []string) []string {
	normalized := make([]string, 0, len(options))
	for _, opt := range options {
		trimmed := strings.TrimSpace(opt)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

// ValidatePollDefinition checks a poll definition after normalization:
// non-empty question, at least two distinct options, the correct answer
// (when given) a member of the options, and a positive duration.
func ValidatePollDefinition(question string, options []string, duration time.Duration, correctAnswer string) error {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}
	if len(options) < 2 {
		return ErrTooFewOptions
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if seen[opt] {
			return ErrDuplicateOption
		}
		seen[opt] = true
	}
	if correctAnswer != "" && !seen[correctAnswer] {
		return ErrCorrectAnswerUnknown
	}
	if duration < time.Second {
		return ErrInvalidDuration
	}
	return nil
}

// IsValidRole reports whether the role is one of the two sender roles.
func IsValidRole(role string) bool {
	return role == RoleTeacher || role == RoleStudent
}
