// Package apiserver implements the server-side HTTP request pipeline: a
// fixed sequence of staged callbacks (restrictions, argument parsing,
// session/account resolution, dispatch, render) over the resource taxonomy
// exposed by a hosted service.
package apiserver

import (
	"net/http"

	"github.com/Connor22/hydrus/errors"
)

// Kind classifies a pipeline failure so Render can pick the right HTTP status
// without string-matching error messages.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindMissingCredentials
	KindDoesNotSupportCORS
	KindInsufficientCredentials
	KindNotFound
	KindDataMissing
	KindFileMissing
	KindSessionInvalid
	KindNetworkVersionMismatch
	KindServerBusy
	KindBandwidthExhausted
)

// StatusCode maps a Kind to the HTTP status the Render stage writes.
func (k Kind) StatusCode() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindMissingCredentials, KindDoesNotSupportCORS:
		return http.StatusUnauthorized
	case KindInsufficientCredentials:
		return http.StatusForbidden
	case KindNotFound, KindDataMissing, KindFileMissing:
		return http.StatusNotFound
	case KindSessionInvalid:
		return 419
	case KindNetworkVersionMismatch:
		return 426
	case KindServerBusy:
		return http.StatusServiceUnavailable
	case KindBandwidthExhausted:
		return 509
	default:
		return http.StatusInternalServerError
	}
}

// PipelineError carries a Kind alongside the usual wrapped error chain, so a
// stage can both fail the request with the right status and preserve context
// for logs.
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string { return e.Err.Error() }
func (e *PipelineError) Unwrap() error { return e.Err }

// Fail constructs a PipelineError of kind wrapping msg.
func Fail(kind Kind, msg string) *PipelineError {
	return &PipelineError{Kind: kind, Err: errors.New(msg)}
}

// Failf constructs a PipelineError of kind with a formatted message.
func Failf(kind Kind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: kind, Err: errors.Newf(format, args...)}
}

// WrapFail wraps an existing error as a PipelineError of kind.
func WrapFail(kind Kind, err error, msg string) *PipelineError {
	return &PipelineError{Kind: kind, Err: errors.Wrap(err, msg)}
}
