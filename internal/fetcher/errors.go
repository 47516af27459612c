package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"

	"github.com/mangashelf/mangashelf/internal/errors"
)

// Kind classifies a failed fetch.
type Kind string

// Failure kinds surfaced to providers.
const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindHTTPStatus Kind = "http_status"
	KindDecode     Kind = "decode"
)

// Error is the typed failure returned by every Session method.
type Error struct {
	Kind       Kind
	StatusCode int // set for KindHTTPStatus
	URL        string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps fetch failures onto the domain error codes so callers can test with
// errors.Is(err, errors.ErrNotFound) and friends.
func (e *Error) Is(target error) bool {
	var t *errors.Error
	if !stderrors.As(target, &t) {
		return false
	}
	switch t.Code {
	case errors.CodeNotFound:
		return e.Kind == KindHTTPStatus && e.StatusCode == 404
	case errors.CodeAuth:
		return e.Kind == KindHTTPStatus && (e.StatusCode == 401 || e.StatusCode == 403)
	case errors.CodeHTTPStatus:
		return e.Kind == KindHTTPStatus
	case errors.CodeNetwork:
		return e.Kind == KindNetwork
	case errors.CodeTimeout:
		return e.Kind == KindTimeout
	case errors.CodeDecode:
		return e.Kind == KindDecode
	default:
		return false
	}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if stderrors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return fe.StatusCode
	}
	return 0
}

func classify(err error) Kind {
	if stderrors.Is(err, errBodyTooLarge) {
		return KindDecode
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
