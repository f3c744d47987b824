package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hyperengineering/recollect/internal/apperr"
)

const (
	// MaxUserIDLength is the maximum length of a user id.
	MaxUserIDLength = 128
	// MaxQueryLength is the maximum query length in runes.
	MaxQueryLength = 4000
)

// userIDPattern accepts RFC 4122 UUIDs and the opaque ids older clients use.
// The id becomes part of a document name, so path separators are excluded.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateNonNegative returns an error if the value is below zero.
func ValidateNonNegative(field string, value int) *ValidationError {
	if value < 0 {
		return &ValidationError{
			Field:   field,
			Message: "must not be negative",
		}
	}
	return nil
}

// ValidateUserID returns an error if the value cannot name a user.
func ValidateUserID(field, value string) *ValidationError {
	if value == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if len(value) > MaxUserIDLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", MaxUserIDLength),
		}
	}
	if !userIDPattern.MatchString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must contain only letters, digits, '-', '_' or '.' and start with a letter or digit",
		}
	}
	return nil
}

// NormalizeUserID validates id and returns its canonical form. Ids that
// parse as UUIDs are lowercased and hyphenated so "{ABC...}" and "abc..."
// address the same bundle; other ids are returned unchanged.
func NormalizeUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String(), nil
	}
	if verr := ValidateUserID("uuid", id); verr != nil {
		return "", apperr.Msg(apperr.Validation, "validation.user_id", "uuid "+verr.Message)
	}
	return id, nil
}

// ValidateMaxValue returns an error if the value exceeds max. A max of zero
// or less disables the check.
func ValidateMaxValue(field string, value, max int) *ValidationError {
	if max > 0 && value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must not exceed %d", max),
		}
	}
	return nil
}

// ValidateSearchRequest checks a search query and requested result count.
// A top_k of zero selects the server default; maxTopK of zero leaves it
// unbounded.
func ValidateSearchRequest(query string, topK, maxTopK int) []ValidationError {
	var c Collector
	if err := ValidateRequired("query", query); err != nil {
		c.Add(err)
		return c.Errors()
	}
	c.Add(ValidateUTF8("query", query))
	c.Add(ValidateNoNullBytes("query", query))
	c.Add(ValidateMaxLength("query", query, MaxQueryLength))
	c.Add(ValidateNonNegative("top_k", topK))
	c.Add(ValidateMaxValue("top_k", topK, maxTopK))
	return c.Errors()
}
