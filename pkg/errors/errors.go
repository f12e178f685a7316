package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrValidation
	ErrConflict
	ErrInternal
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// NonFieldKey addresses a validation failure to the submission as a whole
// rather than to a single input, e.g. cross-field rules like a booking
// collision.
const NonFieldKey = "non_field_errors"

// ValidationErrors carries user-correctable rejections keyed by input field.
// It is an ordinary error value: business-rule rejections travel through the
// same return path as faults but are never logged or retried as such.
type ValidationErrors struct {
	Fields map[string][]string
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: make(map[string][]string)}
}

// Add records a message against one field.
func (v *ValidationErrors) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// AddNonField records a message against the submission as a whole.
func (v *ValidationErrors) AddNonField(message string) {
	v.Add(NonFieldKey, message)
}

func (v *ValidationErrors) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

func (v *ValidationErrors) Error() string {
	if !v.HasErrors() {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], "; ")))
	}
	return strings.Join(parts, ", ")
}

// ErrIfAny returns v as an error when it holds at least one message, nil
// otherwise. Returning the typed nil directly would yield a non-nil error
// interface.
func (v *ValidationErrors) ErrIfAny() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
