package services

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by Ask while the index is still being built or
// after startup failed.
var ErrNotReady = errors.New("pipeline is not ready")

// ErrUnrecognizedMode is returned by the router when the model answers with
// something other than one of the mode keywords.
var ErrUnrecognizedMode = errors.New("unrecognized analysis mode")

// ValidationError rejects a request before any external call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamServiceError wraps a failure of the embedding service, the vector
// index or the language model.
type UpstreamServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// IndexBuildError reports which stage of BuildIndex failed.
type IndexBuildError struct {
	Stage string
	Err   error
}

func (e *IndexBuildError) Error() string {
	return fmt.Sprintf("index build failed at %s: %v", e.Stage, e.Err)
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsUpstream reports whether err is, or wraps, an UpstreamServiceError.
func IsUpstream(err error) bool {
	var u *UpstreamServiceError
	return errors.As(err, &u)
}
