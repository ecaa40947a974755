package domain

import "fmt"

// SourceErrorKind tags connector failures for retry classification.
type SourceErrorKind string

const (
	SourceErrNetwork SourceErrorKind = "network"
	SourceErrHTTP    SourceErrorKind = "http"
	SourceErrTimeout SourceErrorKind = "timeout"
	SourceErrParse   SourceErrorKind = "parse"
	SourceErrCaptcha SourceErrorKind = "captcha"
)

// SourceError is the tagged error surfaced by connectors. Retryable failures
// (network, timeout, HTTP >= 500) may be re-attempted within a fetch; the
// rest abort the attempt immediately.
type SourceError struct {
	Kind      SourceErrorKind
	Status    int
	Retryable bool
	Err       error
}

func (e *SourceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("source error kind=%s status=%d retryable=%t: %v", e.Kind, e.Status, e.Retryable, e.Err)
	}
	return fmt.Sprintf("source error kind=%s retryable=%t: %v", e.Kind, e.Retryable, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError builds a tagged connector error.
func NewSourceError(kind SourceErrorKind, status int, retryable bool, err error) *SourceError {
	return &SourceError{Kind: kind, Status: status, Retryable: retryable, Err: err}
}
