// Package errs provides the error type shared by the planner client, the
// fetcher, the download buttons and the save targets.
//
// Every layer wraps its native errors into *errs.Error before returning them.
// Callers use the Is* predicates to tell causes apart even when the user only
// ever sees a generic "something went wrong".
//
// Usage:
//
//	return errs.Wrap(errs.ErrKindMalformedResponse, "decode initSchemas", err)
//
//	if errs.IsConnectionFailed(err) {
//	    // server unreachable
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing transport specifics.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindConnectionFailed          // cannot reach the planner server
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindHTTPStatus                // server answered with a non-2xx status
	ErrKindMalformedResponse         // body could not be parsed
	ErrKindNotFound                  // unknown schema, bucket, object
	ErrKindPermissionDenied          // bad or missing token, storage ACL
	ErrKindInvalidInput              // bad arguments from the caller
	ErrKindStorageFailed             // the bytes arrived but could not be saved
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindHTTPStatus:
		return "http_status"
	case ErrKindMalformedResponse:
		return "malformed_response"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindStorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by pdqctl subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	// StatusCode is set for ErrKindHTTPStatus.
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Status creates an ErrKindHTTPStatus error for the given response code.
func Status(code int, msg string) *Error {
	return &Error{Kind: ErrKindHTTPStatus, Message: fmt.Sprintf("%s: http %d", msg, code), StatusCode: code}
}

func IsConnectionFailed(err error) bool { return KindOf(err) == ErrKindConnectionFailed }

func IsTimeout(err error) bool { return KindOf(err) == ErrKindTimeout }

func IsHTTPStatus(err error) bool { return KindOf(err) == ErrKindHTTPStatus }

func IsMalformedResponse(err error) bool { return KindOf(err) == ErrKindMalformedResponse }

func IsNotFound(err error) bool { return KindOf(err) == ErrKindNotFound }

func IsPermissionDenied(err error) bool { return KindOf(err) == ErrKindPermissionDenied }

func IsInvalidInput(err error) bool { return KindOf(err) == ErrKindInvalidInput }

func IsStorageFailed(err error) bool { return KindOf(err) == ErrKindStorageFailed }

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
