package routing

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a route request.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNetworkFailure    Kind = "network_failure"
	KindRemoteError       Kind = "remote_error"
	KindMalformedResponse Kind = "malformed_response"
	// KindNoRouteFound is not an error; it labels a well-formed empty path.
	KindNoRouteFound Kind = "no_route_found"
	// KindStaleResult labels a completion superseded by a newer request.
	// It is resolved by the caller and never shown to the user.
	KindStaleResult Kind = "stale_result"
)

// Sentinels for errors.Is matching on kind.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrNetworkFailure    = &Error{Kind: KindNetworkFailure}
	ErrRemoteError       = &Error{Kind: KindRemoteError}
	ErrMalformedResponse = &Error{Kind: KindMalformedResponse}
)

// Error is a failed route request.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("route request: %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("route request: %s (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("route request: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("route request: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, status int, err error) *Error {
	return &Error{Kind: kind, StatusCode: status, Err: err}
}

// KindOf extracts the kind of a route request error. Unknown errors count as
// network failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindNetworkFailure
}

// UserMessage is the single user-facing message for a failure kind. It is
// empty for kinds that are never shown.
func UserMessage(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "The selected points are not valid map coordinates. Please try again."
	case KindNetworkFailure:
		return "Could not reach the routing service. Please check your connection and try again."
	case KindRemoteError:
		return "The routing service failed to calculate a route. Please try again."
	case KindMalformedResponse:
		return "The routing service returned an unexpected response. Please try again."
	default:
		return ""
	}
}
