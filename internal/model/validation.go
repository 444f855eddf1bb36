package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field length limits enforced by the API.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	MaxTagsLength        = 500
)

// Task input field names used as keys in ValidationResult.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDueDate     = "due_date"
	FieldPriority    = "priority"
	FieldTags        = "tags"
)

var fieldOrder = []string{
	FieldTitle, FieldDescription, FieldDueDate, FieldPriority, FieldTags,
}

var (
	ErrTitleRequired   = errors.New("Title is required")
	ErrInvalidDate     = errors.New("Invalid date format")
	ErrInvalidPriority = errors.New("Priority must be low, medium, or high")
)

// PastDueWarning is attached to a due date that has already passed.
const PastDueWarning = "Due date is in the past"

// ValidationResult holds per-field errors and non-blocking warnings.
type ValidationResult struct {
	Errors   map[string]string
	Warnings map[string]string
}

// Valid reports whether no field has an error. Warnings do not count.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// FirstError returns the first error in form field order, or "".
func (r ValidationResult) FirstError() string {
	for _, f := range fieldOrder {
		if msg, ok := r.Errors[f]; ok {
			return msg
		}
	}
	return ""
}

// ValidateTitle requires a non-blank title of at most MaxTitleLength
// characters once trimmed, which is what gets sent.
func ValidateTitle(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return fmt.Errorf("Title must be %d characters or less", MaxTitleLength)
	}
	return nil
}

// ValidateDescription limits the trimmed description to
// MaxDescriptionLength characters.
func ValidateDescription(s string) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) > MaxDescriptionLength {
		return fmt.Errorf("Description must be %d characters or less", MaxDescriptionLength)
	}
	return nil
}

// ValidateDueDate accepts an empty value or an ISO-8601 date/timestamp.
// A date before now is valid and yields a warning.
func ValidateDueDate(s string, now time.Time) (warning string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", ErrInvalidDate
	}
	if t.Before(now) {
		return PastDueWarning, nil
	}
	return "", nil
}

// ValidatePriority accepts empty (defaults to medium) or a known priority.
func ValidatePriority(p Priority) error {
	if p == "" || p.Valid() {
		return nil
	}
	return ErrInvalidPriority
}

// ValidateTagsText limits the comma-delimited tags text to MaxTagsLength.
func ValidateTagsText(s string) error {
	if utf8.RuneCountInString(s) > MaxTagsLength {
		return fmt.Errorf("Tags must be %d characters or less", MaxTagsLength)
	}
	return nil
}

// ValidateTaskInput checks every field of a create/update request.
func ValidateTaskInput(in TaskInput, now time.Time) ValidationResult {
	res := ValidationResult{
		Errors:   make(map[string]string),
		Warnings: make(map[string]string),
	}

	if err := ValidateTitle(in.Title); err != nil {
		res.Errors[FieldTitle] = err.Error()
	}
	if err := ValidateDescription(in.Description); err != nil {
		res.Errors[FieldDescription] = err.Error()
	}
	warning, err := ValidateDueDate(in.DueDate, now)
	if err != nil {
		res.Errors[FieldDueDate] = err.Error()
	} else if warning != "" {
		res.Warnings[FieldDueDate] = warning
	}
	if err := ValidatePriority(in.Priority); err != nil {
		res.Errors[FieldPriority] = err.Error()
	}
	if err := ValidateTagsText(JoinTags(in.Tags)); err != nil {
		res.Errors[FieldTags] = err.Error()
	}

	return res
}
