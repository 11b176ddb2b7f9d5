package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure so callers can decide on retries and the web
// layer can map it to a status code without inspecting error strings.
type Kind string

const (
	Validation    Kind = "validation"
	SessionBusy   Kind = "session_busy"
	Configuration Kind = "configuration"
	Timeout       Kind = "timeout"
	RateLimited   Kind = "rate_limited"
	Auth          Kind = "auth"
	Provider      Kind = "provider"
	Network       Kind = "network"
	Unknown       Kind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on a later
// attempt with the same request.
func (k Kind) Retryable() bool {
	switch k {
	case Timeout, RateLimited, Network:
		return true
	default:
		return false
	}
}

// Fault is a tagged failure: a kind plus human-readable detail. RetryAfter is
// the provider-requested backoff, zero when the provider did not specify one.
type Fault struct {
	Kind       Kind
	Detail     string
	RetryAfter time.Duration
}

func (f *Fault) Error() string {
	return string(f.Kind) + ": " + f.Detail
}

// New builds a Fault with formatted detail.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// As unwraps err to a *Fault if one is in its chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the kind of err, or Unknown for untagged errors.
func KindOf(err error) Kind {
	if f, ok := As(err); ok {
		return f.Kind
	}
	return Unknown
}
