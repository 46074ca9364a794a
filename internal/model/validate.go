package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateGate checks a Gate for constraint violations before it is provisioned.
// It returns a *ValidationError if any rules fail, or nil if the gate is valid.
func ValidateGate(g *Gate) error {
	var ve ValidationError

	label := strings.TrimSpace(g.Label)
	if label == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "gate_id", Message: "is required"})
	} else if len([]rune(label)) > 32 {
		ve.Errors = append(ve.Errors, FieldError{Field: "gate_id", Message: "must be 32 characters or fewer"})
	}

	if !g.Type.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "type",
			Message: fmt.Sprintf("invalid value %q", g.Type),
		})
	}

	if !g.Status.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "status",
			Message: fmt.Sprintf("invalid value %q", g.Status),
		})
	}

	if g.ExtraTimeMinutes < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "extra_time_minutes",
			Message: fmt.Sprintf("must not be negative, got %d", g.ExtraTimeMinutes),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
