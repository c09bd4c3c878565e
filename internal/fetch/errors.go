package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures so callers can map them to HTTP statuses
// and decide on retries.
type Kind string

const (
	KindTimeout     Kind = "upstream-timeout"
	KindNetwork     Kind = "upstream-network"
	KindUpstream4xx Kind = "upstream-4xx"
	KindUpstream5xx Kind = "upstream-5xx"
	KindRateLimited Kind = "rate-limited"
	KindParse       Kind = "parse"
)

type Error struct {
	Kind       Kind
	StatusCode int // set for 4xx/5xx/rate-limited
	URL        string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" if it is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Retryable reports whether err may succeed on a later attempt. Permanent
// 4xx responses are terminal; rate limiting, 5xx, network errors and
// timeouts are worth retrying.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindUpstream4xx, KindParse:
		return false
	default:
		return true
	}
}

// ParseError wraps a malformed-payload failure.
func ParseError(url string, err error) error {
	return &Error{Kind: KindParse, URL: url, Err: err}
}
