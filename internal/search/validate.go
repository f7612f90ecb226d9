package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxCategoryLength bounds a category name after trimming.
const MaxCategoryLength = 64

var categoryPattern = regexp.MustCompile(`^[\w\s\-/]+$`)

// ValidationError reports unusable caller input. Nothing is queried or written
// when a search fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateCategoryName returns the trimmed name or a *ValidationError.
func ValidateCategoryName(name string) (string, error) {
	return validateCategory("category name", name)
}

func validateCategory(field, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return "", &ValidationError{Field: field, Reason: "cannot be empty"}
	case utf8.RuneCountInString(trimmed) > MaxCategoryLength:
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("too long (max %d characters)", MaxCategoryLength)}
	case !categoryPattern.MatchString(trimmed):
		return "", &ValidationError{Field: field, Reason: "contains invalid characters"}
	}
	return trimmed, nil
}

// NormalizeLimit clamps limit to [1, maxLimit]. A non-positive limit selects
// defaultLimit, which is itself clamped to the same range.
func NormalizeLimit(limit, defaultLimit, maxLimit int) int {
	if maxLimit < 1 {
		maxLimit = 1
	}
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ParseLimit reads a user-supplied limit. Anything non-numeric is treated as absent (0).
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
