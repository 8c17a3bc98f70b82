// Package verrors implements the error taxonomy described in the pipeline
// design: a small set of typed error kinds, each carrying enough context to
// attach itself to a finding or to short-circuit the pipeline.
package verrors

import (
	"fmt"
	"time"
)

// Kind identifies one of the fixed error categories the pipeline produces.
type Kind string

const (
	KindConfigInvalid      Kind = "config_invalid"
	KindPathUnreadable      Kind = "path_unreadable"
	KindFileIoFailure       Kind = "file_io_failure"
	KindParseFailure        Kind = "parse_failure"
	KindAdapterCrash        Kind = "adapter_crash"
	KindCoverageFormatError Kind = "coverage_format_error"
	KindTimeout             Kind = "timeout"
	KindCancelled           Kind = "cancelled"
	KindResourceExhausted   Kind = "resource_exhausted"
	KindInternalInvariant   Kind = "internal_invariant_violated"
)

// Fatal reports whether an error of this kind always short-circuits the
// pipeline. Local kinds instead become a Finding and the run continues.
func (k Kind) Fatal() bool {
	switch k {
	case KindConfigInvalid, KindPathUnreadable, KindCancelled,
		KindResourceExhausted, KindInternalInvariant:
		return true
	default:
		return false
	}
}

// PipelineError is the single concrete error type used across the pipeline.
// Every constructor below returns one, pre-populated for its kind.
type PipelineError struct {
	Kind       Kind
	Op         string // the operation that failed, e.g. "discover", "parse"
	Path       string // file or directory path, when applicable
	Underlying error
	Timestamp  time.Time
}

func newError(kind Kind, op, path string, err error) *PipelineError {
	return &PipelineError{
		Kind:       kind,
		Op:         op,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// NewConfigInvalid reports a malformed or contradictory configuration.
func NewConfigInvalid(field string, err error) *PipelineError {
	return newError(KindConfigInvalid, "config."+field, "", err)
}

// NewPathUnreadable reports a root path that does not exist or cannot be
// accessed. Fatal.
func NewPathUnreadable(path string, err error) *PipelineError {
	return newError(KindPathUnreadable, "discover", path, err)
}

// NewFileIoFailure reports a candidate file that could not be read. Local.
func NewFileIoFailure(path string, err error) *PipelineError {
	return newError(KindFileIoFailure, "read", path, err)
}

// NewParseFailure reports an adapter that returned no usable tree. Local.
func NewParseFailure(path string, err error) *PipelineError {
	return newError(KindParseFailure, "parse", path, err)
}

// NewAdapterCrash reports a recovered panic inside a language adapter. Local.
func NewAdapterCrash(path string, recovered interface{}) *PipelineError {
	return newError(KindAdapterCrash, "parse", path, fmt.Errorf("adapter panic: %v", recovered))
}

// NewCoverageFormatError reports a malformed coverage report. Local.
func NewCoverageFormatError(path string, err error) *PipelineError {
	return newError(KindCoverageFormatError, "coverage", path, err)
}

// NewTimeout reports a per-file or per-stage timeout. KindTimeout is
// classified as local (Kind.Fatal reports false); a caller that ends the
// run on a stage or total timeout does so by returning this error.
func NewTimeout(op, path string) *PipelineError {
	return newError(KindTimeout, op, path, fmt.Errorf("%s timed out", op))
}

// NewCancelled reports cooperative cancellation of the pipeline. Fatal.
func NewCancelled(op string) *PipelineError {
	return newError(KindCancelled, op, "", fmt.Errorf("cancelled"))
}

// NewResourceExhausted reports the memory soft limit being hit. Fatal.
func NewResourceExhausted(op string) *PipelineError {
	return newError(KindResourceExhausted, op, "", fmt.Errorf("resource limit exceeded"))
}

// NewInternalInvariant reports a should-never-happen bug. Fatal.
func NewInternalInvariant(op string, err error) *PipelineError {
	return newError(KindInternalInvariant, op, "", err)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Op, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Underlying)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *PipelineError) Unwrap() error {
	return e.Underlying
}

// Fatal reports whether this particular error should short-circuit the run.
func (e *PipelineError) Fatal() bool {
	return e.Kind.Fatal()
}

// MultiError aggregates independent errors collected across a batch of
// fanned-out work (e.g. a stage's per-file failures).
type MultiError struct {
	Errors []error
}

// NewMultiError builds a MultiError, dropping any nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface.
func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

// Unwrap returns all wrapped errors, for errors.Is/As over the Go 1.20+ tree.
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
