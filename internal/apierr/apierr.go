// Package apierr defines the structured error shape the control protocol
// returns to icpcctl: {ok, error_kind, message}, generalized from the
// teacher's plain-error CLI surface into a machine-parseable envelope
// suitable for a daemon/client boundary.
package apierr

import "encoding/json"

// Kind classifies a control-protocol failure so a client can branch on it
// without string-matching Message.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindInvalid     Kind = "invalid_request"
	KindStore       Kind = "store_error"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// Error is the structured error the control protocol serializes in place
// of a bare error string.
type Error struct {
	Kind    Kind   `json:"error_kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Envelope is the top-level response shape every control-protocol command
// returns, carrying either a result payload or a structured error.
type Envelope struct {
	OK     bool            `json:"ok"`
	Error  *Error          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Ok wraps a successful result payload into an Envelope.
func Ok(result any) (Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{OK: true, Result: raw}, nil
}

// Fail wraps an Error into a failed Envelope.
func Fail(err *Error) Envelope {
	return Envelope{OK: false, Error: err}
}

// FromError classifies a generic error into an internal-kind Envelope
// when the caller hasn't already produced a structured *Error.
func FromError(err error) Envelope {
	if err == nil {
		return Envelope{OK: true}
	}
	if apiErr, ok := err.(*Error); ok {
		return Fail(apiErr)
	}
	return Fail(New(KindInternal, err.Error()))
}
