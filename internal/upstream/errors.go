package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure for retry and logging decisions.
type Kind string

const (
	// KindHTTP is a non-success HTTP status.
	KindHTTP Kind = "http"
	// KindDecode is a response body that does not match the expected shape.
	KindDecode Kind = "decode"
	// KindTimeout is a per-request deadline exceeded.
	KindTimeout Kind = "timeout"
	// KindNetwork is any other transport fault.
	KindNetwork Kind = "network"
)

// Error is the typed failure returned by every client operation after
// retries are exhausted.
type Error struct {
	Kind     Kind
	Endpoint string
	Status   int // set for KindHTTP only
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTP {
		return fmt.Sprintf("upstream %s: %s status %d", e.Endpoint, e.Kind, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Endpoint, e.Kind, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Endpoint, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind extracts the failure kind, or "" when err is not an upstream
// error.
func ErrorKind(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}
