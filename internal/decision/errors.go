package decision

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidRequest     = errors.New("decision: invalid scoring request")
	ErrMissingAPIKey      = errors.New("decision: api key is required")
	ErrMissingCredentials = errors.New("decision: basic auth username and password are required")
	ErrInvalidConfig      = errors.New("decision: invalid client config")
)

// FailureKind discriminates the two failure families of a decision call.
type FailureKind string

const (
	// KindRejection means the scoring service judged the login unsafe.
	// It is the only failure surfaced to callers.
	KindRejection FailureKind = "rejection"
	// KindTransport covers every infrastructure failure. These are
	// absorbed and replaced by the fail-open response.
	KindTransport FailureKind = "transport"
)

// Failure is implemented by RejectionError and TransportError.
type Failure interface {
	error
	Kind() FailureKind
}

// RejectionError is returned when a login must not proceed.
type RejectionError struct {
	ConfirmedFraudulent bool
	Response            *ScoringResponse
}

// NewRejectionError returns a rejection flagged as confirmed fraudulent.
func NewRejectionError(resp *ScoringResponse) *RejectionError {
	return &RejectionError{ConfirmedFraudulent: true, Response: resp}
}

func (e *RejectionError) Error() string {
	if e.ConfirmedFraudulent {
		return "login rejected: confirmed fraudulent"
	}
	return "login rejected"
}

func (e *RejectionError) Kind() FailureKind { return KindRejection }

// Reasons a call to the scoring service can fail.
const (
	ReasonStatus    = "status"
	ReasonTransport = "transport"
	ReasonTimeout   = "timeout"
	ReasonDecode    = "decode"
)

// TransportError describes a failed call to the scoring service.
type TransportError struct {
	Reason     string
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("scoring api %s (status %d): %v", e.Reason, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("scoring api %s (status %d): %s", e.Reason, e.StatusCode, truncate(e.Body, 256))
	case e.Err != nil:
		return fmt.Sprintf("scoring api %s: %v", e.Reason, e.Err)
	default:
		return "scoring api " + e.Reason
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() FailureKind { return KindTransport }

// IsRejection reports whether err carries a rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
