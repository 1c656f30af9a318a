package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed completion call.
type Kind int

const (
	KindUnreachable Kind = iota + 1
	KindTimeout
	KindMalformed
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "backend unreachable"
	case KindTimeout:
		return "backend timeout"
	case KindMalformed:
		return "malformed response"
	case KindStatus:
		return "non-success status"
	}
	return "unknown backend error"
}

// Error is the typed failure returned by Client.Complete.
type Error struct {
	Kind       Kind
	StatusCode int // Set for KindStatus.
	Err        error
}

// Sentinels for errors.Is. StatusError(code) matches a specific status.
var (
	ErrBackendUnreachable = &Error{Kind: KindUnreachable}
	ErrBackendTimeout     = &Error{Kind: KindTimeout}
	ErrMalformedResponse  = &Error{Kind: KindMalformed}
	ErrNonSuccessStatus   = &Error{Kind: KindStatus}
)

// StatusError returns a sentinel matching a non-success response with code.
func StatusError(code int) *Error {
	return &Error{Kind: KindStatus, StatusCode: code}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == KindStatus && e.StatusCode != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		return msg + ": " + truncate(e.Err.Error(), 200)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on StatusCode when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.StatusCode == 0 || t.StatusCode == e.StatusCode
}

// IsRetryable reports whether a failed call is worth retrying: timeouts,
// rate limiting and server-side errors.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTimeout:
		return true
	case KindStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
