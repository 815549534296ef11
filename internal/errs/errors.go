// Package errs provides the unified error type used across relarchive.
//
// Every subsystem (database drivers, schema catalog, naming, field treatment,
// output storage) wraps its failures into *errs.Error before returning them.
// An archive run never recovers locally: the first error aborts the whole
// run and reaches the caller, which inspects it with the Is* predicates.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "select failed", mysqlErr)
//
//	// In the CLI or HTTP layer, check error kind:
//	if errs.IsMapping(err) {
//	    http.Error(w, err.Error(), http.StatusUnprocessableEntity)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no bucket
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // a select or catalog lookup could not execute
	ErrKindInvalidInput             // bad arguments or configuration from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindMapping                  // a foreign key has no usable embedding name
	ErrKindUnsupportedType          // a column needs treatment but no decoder exists
	ErrKindDepthExceeded            // reference chain deeper than the configured limit
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindMapping:
		return "mapping"
	case ErrKindUnsupportedType:
		return "unsupported_type"
	case ErrKindDepthExceeded:
		return "depth_exceeded"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all relarchive subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.detail())
}

// detail is the message and cause chain without the kind tag. A cause of
// the same kind is printed without repeating its tag.
func (e *Error) detail() string {
	if e.Cause == nil {
		return e.Message
	}
	if inner, ok := e.Cause.(*Error); ok && inner.Kind == e.Kind {
		return e.Message + ": " + inner.detail()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a failed select or schema lookup.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsMapping reports whether err is a naming failure for an embedded entity.
func IsMapping(err error) bool {
	return KindOf(err) == ErrKindMapping
}

// IsUnsupportedType reports whether err comes from a column type with no decoder.
func IsUnsupportedType(err error) bool {
	return KindOf(err) == ErrKindUnsupportedType
}

// IsDepthExceeded reports whether err stopped a traversal at the depth limit.
func IsDepthExceeded(err error) bool {
	return KindOf(err) == ErrKindDepthExceeded
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// KindOr returns the kind err already carries, or fallback when it has none.
// Layers that add context to a lower-level error use it so that a driver's
// Timeout or NotFound is not masked.
func KindOr(err error, fallback ErrKind) ErrKind {
	if k := KindOf(err); k != ErrKindUnknown {
		return k
	}
	return fallback
}
