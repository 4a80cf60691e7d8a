package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoUserMessage  = errors.New("no user message provided")
	ErrNoUserID       = errors.New("no user identifier in request")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownVariant = errors.New("unknown backend variant")
	ErrEmptyResponse  = errors.New("backend returned an empty response")
)

// ErrorKind classifies a failed backend call. Each kind maps to a distinct
// user-facing message in the pipeline.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindHTTP       ErrorKind = "http"
	KindConnection ErrorKind = "connection"
	KindDecode     ErrorKind = "decode"
	KindOther      ErrorKind = "other"
)

// BackendError wraps a failure from a RAG backend call with enough
// context for the orchestrator to pick a user-facing message.
type BackendError struct {
	Op     string
	Kind   ErrorKind
	Status int
	URL    string
	Err    error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s [%s status=%d]: %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func NewBackendError(op string, kind ErrorKind, err error) *BackendError {
	return &BackendError{Op: op, Kind: kind, Err: err}
}

// Category returns the BackendError kind when err carries one, or "unknown".
// Used for the catch-all user message that names the failure's category.
func Category(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return string(be.Kind)
	}
	return "unknown"
}
