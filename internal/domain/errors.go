package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

// FilterError rejects a search request. It matches ErrInvalidFilter with errors.Is.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid filter: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter %q: %s", e.Field, e.Reason)
}

func (e *FilterError) Unwrap() error { return ErrInvalidFilter }

func InvalidFilter(field, format string, args ...any) error {
	return &FilterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
