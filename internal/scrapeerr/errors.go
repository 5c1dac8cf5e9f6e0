// Package scrapeerr defines the failure kinds that cross component boundaries.
package scrapeerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindContextInit     Kind = "context_init"
	KindNavigation      Kind = "navigation"
	KindLoadTimeout     Kind = "load_timeout"
	KindPagination      Kind = "pagination"
	KindStalePagination Kind = "stale_pagination"
	KindExtraction      Kind = "extraction"
	KindConfiguration   Kind = "configuration"
	KindRelease         Kind = "release"
)

// Error carries a Kind together with the operation and URL it happened on.
type Error struct {
	Kind Kind
	Op   string
	URL  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds an error of the given kind from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithURL returns a copy of e tagged with url.
func (e *Error) WithURL(url string) *Error {
	cp := *e
	cp.URL = url
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsAttemptFailure reports whether err is one of the per-attempt failures the
// retry controller recovers from by replacing the browser session.
func IsAttemptFailure(err error) bool {
	switch KindOf(err) {
	case KindNavigation, KindLoadTimeout, KindPagination, KindStalePagination, KindExtraction:
		return true
	}
	return false
}
