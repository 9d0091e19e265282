package homepage

import (
	"errors"
	"fmt"
	"strings"
)

// FieldProblem describes one invalid input field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input. Nothing is written when it is
// returned.
type ValidationError struct {
	Problems []FieldProblem `json:"problems"`
}

// NewValidationError builds a ValidationError from problems.
func NewValidationError(problems ...FieldProblem) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError reports a missing section, item or product.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Conflict reasons.
const (
	ReasonDuplicateID      = "duplicate_id"
	ReasonDuplicateProduct = "duplicate_product"
)

// ConflictError reports a uniqueness violation. ID names the existing
// resource so a client can link to it.
type ConflictError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Reason   string `json:"reason"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q conflicts: %s", e.Resource, e.ID, e.Reason)
}

// CapabilityError means the caller may not edit the homepage.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	if e.Reason == "" {
		return "editor capability required"
	}
	return "editor capability required: " + e.Reason
}

// GatewayError wraps a storage failure. Writes are never retried
// automatically; a position rewrite applied twice is not harmless.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return "gateway " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
