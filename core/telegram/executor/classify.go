package executor

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind classifies a failed remote call.
type Kind int

const (
	// KindUnknown covers faults that match no other class; retried
	// conservatively.
	KindUnknown Kind = iota
	// KindRateLimited is a server-imposed wait, not a failure of the call.
	KindRateLimited
	// KindTransient covers network and timeout faults worth retrying.
	KindTransient
	// KindClient covers malformed requests and permission denials; never
	// retried.
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindClient:
		return "client_error"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its failure kind. For KindRateLimited the
// second return value carries the server-requested wait.
func Classify(err error) (Kind, time.Duration) {
	if err == nil {
		return KindUnknown, 0
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return KindRateLimited, time.Duration(floodErr.RetryAfter) * time.Second
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return KindClient, 0
		}
		return KindUnknown, 0
	}

	if isTransient(err) {
		return KindTransient, 0
	}

	return KindUnknown, 0
}

// isTransient reports whether a network error is worth retrying. It focuses
// on transient dial/timeout failures produced by net/http while contacting
// the Telegram API.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
		if nested, ok := opErr.Err.(net.Error); ok && nested.Timeout() {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return isTransient(urlErr.Err)
		}
	}

	return false
}

// IsTransient exposes the transient check for transports that retry at the
// HTTP round-trip level.
func IsTransient(err error) bool {
	return isTransient(err)
}

// Failure is the typed terminal outcome of an exhausted or aborted call.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "call failed: " + f.Kind.String()
	}
	return "call failed (" + f.Kind.String() + "): " + f.Err.Error()
}

// Unwrap exposes the last observed error for errors.Is/As chains.
func (f *Failure) Unwrap() error { return f.Err }

// Code returns the failure kind as a stable uppercase code for logs.
func (f *Failure) Code() string {
	switch f.Kind {
	case KindTransient:
		return "TRANSIENT"
	case KindClient:
		return "CLIENT_ERROR"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "UNKNOWN"
	}
}
