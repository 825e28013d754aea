package alerts

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an Error
type Kind string

const (
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindRateLimited      Kind = "rate_limited"
	KindBadRequest       Kind = "bad_request"
	KindInternalServer   Kind = "internal_server_error"
	KindInvalidParameter Kind = "invalid_parameter"
	KindAPI              Kind = "api_error"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrRateLimited      = &Error{Kind: KindRateLimited}
	ErrBadRequest       = &Error{Kind: KindBadRequest}
	ErrInternalServer   = &Error{Kind: KindInternalServer}
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter}
	ErrAPI              = &Error{Kind: KindAPI}
)

// Error is returned by every Client operation
type Error struct {
	Kind       Kind
	StatusCode int
	Endpoint   string
	Message    string

	// RetryAfter is set for rate limited responses that carry the header
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (%d %s)", msg, e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Endpoint != "" {
		msg = "GET " + e.Endpoint + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IsKind reports whether err is or wraps an *Error of kind k
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsRateLimited is a cache.WithStaleIfError predicate
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusBadRequest:
		return KindBadRequest
	case code >= 500:
		return KindInternalServer
	default:
		return KindAPI
	}
}

func invalidParameter(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf(format, args...), Err: err}
}
