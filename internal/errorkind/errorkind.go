// Package errorkind implements the abstract error taxonomy used across the
// resilience layer. Callers switch on Kind, never on error-message
// substrings: every component that classifies an error returns one of
// these values instead of inspecting strings.
package errorkind

// Kind is one of the error categories the resilience layer reasons about.
type Kind string

const (
	TransientNetwork Kind = "transient-network"
	Timeout          Kind = "timeout"
	HTTPStatus       Kind = "http-status"
	RateLimited      Kind = "rate-limited"
	ContentQuality   Kind = "content-quality"
	AuthFailure      Kind = "auth-failure"
	UsageExhausted   Kind = "usage-exhausted"
	CircuitOpen      Kind = "circuit-open"
	Unknown          Kind = "unknown"
)

// Classified pairs a Kind with the underlying error.
type Classified struct {
	Kind Kind
	Err  error
}

func (c *Classified) Error() string {
	if c.Err == nil {
		return string(c.Kind)
	}
	return c.Err.Error()
}

func (c *Classified) Unwrap() error { return c.Err }

// Wrap attaches a Kind to an error so downstream matchers can switch on it.
func Wrap(kind Kind, err error) *Classified {
	return &Classified{Kind: kind, Err: err}
}

// KindOf extracts the Kind from an error produced by Wrap, defaulting to
// Unknown for anything not classified.
func KindOf(err error) Kind {
	var c *Classified
	if asClassified(err, &c) {
		return c.Kind
	}
	return Unknown
}

func asClassified(err error, target **Classified) bool {
	for err != nil {
		if c, ok := err.(*Classified); ok {
			*target = c
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Retryable reports whether the retry manager's default policy set should
// retry an error of this kind. Circuit-open and content-quality are never
// retryable: the former because it must propagate immediately, the latter
// because it isn't an error at all to the caller.
func Retryable(kind Kind) bool {
	switch kind {
	case TransientNetwork, Timeout, HTTPStatus:
		return true
	case RateLimited, ContentQuality, AuthFailure, UsageExhausted, CircuitOpen, Unknown:
		return false
	default:
		return false
	}
}
