package fetch

import "fmt"

// ErrorKind classifies a fetch failure. Only timeouts and transient network
// failures are worth retrying; everything else is stable across attempts.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient_network"
	KindPermanentHTTP ErrorKind = "permanent_http"
)

// Error is the typed failure returned by Client. Status is set for
// KindNotFound and KindPermanentHTTP.
type Error struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("fetch %s: not found", e.URL)
	case KindPermanentHTTP:
		if e.Status != 0 {
			return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
		}
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransient
}
