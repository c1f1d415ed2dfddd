package gateway

import "errors"

var (
	// ErrNotAuthenticated is returned when the SSO answers 401 and the
	// caller has no session to refresh. On the startup probe this is an
	// expected condition, not a failure.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned when a 401 could not be recovered by a
	// session refresh. The user must sign in again.
	ErrSessionExpired = errors.New("session expired, please sign in again")
)

// ServerError carries a message the SSO supplied verbatim for a non-2xx
// response. Forms surface Message to the user unchanged.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsServerMessage extracts a ServerError from err's chain, if present.
func IsServerMessage(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
