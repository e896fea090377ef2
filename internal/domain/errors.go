package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every problem found in caller-supplied data.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StorageWriteError reports a failed registry or artifact write.
type StorageWriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// PointerEmissionError reports a failure to render the scannable pointer.
type PointerEmissionError struct {
	ID  string
	Err error
}

func (e *PointerEmissionError) Error() string {
	return fmt.Sprintf("pointer for %s: %v", e.ID, e.Err)
}

func (e *PointerEmissionError) Unwrap() error {
	return e.Err
}

// ErrCorruptStore is returned when a registry file exists but cannot be parsed.
var ErrCorruptStore = errors.New("registry file is corrupt")

// ErrUnauthorized is returned when a clerk credential is missing or wrong.
var ErrUnauthorized = errors.New("unauthorized")
