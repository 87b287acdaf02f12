// Package beeperr implements the error taxonomy in spec.md §7 as a typed Kind plus
// a wrapping Error, so boundaries can attach component-scoped context with
// errors.As instead of string-matching, while still carrying a %w chain for
// fmt.Errorf-style composition. Grounded on the teacher's httputil.HTTPError
// wrapping shape (pkg/infrastructure/http/errors.go).
package beeperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the design-level error taxonomy from spec.md §7.
type Kind string

const (
	KindInput               Kind = "input"               // malformed/out-of-range input; 400-class
	KindNotFound            Kind = "not_found"            // addressable missing entity
	KindDuplicateWitness    Kind = "duplicate_witness"     // unique (sighting, device) violation
	KindRateLimited         Kind = "rate_limited"          // per-device/global suppression; 429-class
	KindWindowClosed        Kind = "window_closed"         // temporal guard expired
	KindOutOfRangeWitness   Kind = "out_of_range_witness"  // distance guard
	KindUpstream            Kind = "upstream"              // remote provider failure
	KindTimeout             Kind = "timeout"               // deadline expired
	KindTransientBackend    Kind = "transient_backend"     // store unavailable, retriable
	KindDispatchUnavailable Kind = "dispatch_unavailable"   // push credentials missing/invalid
	KindConflict            Kind = "conflict"
)

// Error is a Kind-tagged, component-scoped error.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error

	// Optional structured context, populated by specific Kinds.
	RetriableUpstream bool   // KindUpstream
	Provider          string // KindUpstream
	RemainingSeconds  float64 // KindWindowClosed
	DistanceKM        float64 // KindOutOfRangeWitness
	LimitKM           float64 // KindOutOfRangeWitness
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap attaches component-scoped context to an existing error under the given
// Kind, per §7's "the core never wraps an error opaquely" propagation policy.
func Wrap(kind Kind, component, message string, err error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// IsRetriable reports whether the error represents a condition the caller should
// retry (transient backend failures, and upstream failures explicitly marked
// retriable).
func IsRetriable(err error) bool {
	var be *Error
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == KindTransientBackend || (be.Kind == KindUpstream && be.RetriableUpstream)
}
