package ucp

import (
	"errors"
	"fmt"
)

// Classification sentinels. Every error returned by this package wraps
// exactly one of them so callers can branch with errors.Is.
var (
	ErrInvalidRequest    = errors.New("invalid checkout request")
	ErrUnconfigured      = errors.New("checkout protocol is not configured")
	ErrAuth              = errors.New("token exchange rejected")
	ErrRemoteUnavailable = errors.New("checkout endpoint unavailable")
	ErrRemoteRejected    = errors.New("checkout rejected by merchant")
	ErrInvalidInput      = errors.New("invalid input")
)

// AccessDisabledDetail is the literal error detail a merchant returns when it
// has opted out of agent-initiated checkout.
const AccessDisabledDetail = "Access disabled."

// AccessDisabledCode is the structured form of AccessDisabledDetail.
const AccessDisabledCode = "access_disabled"

// AuthError reports a token endpoint that was reached but refused the
// client-credentials exchange.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "auth: " + e.Message
	}
	return fmt.Sprintf("auth: %s (status %d)", e.Message, e.Status)
}

func (e *AuthError) Unwrap() error { return ErrAuth }

// ProtocolError is a structured application error returned by a merchant
// endpoint.
type ProtocolError struct {
	Message        string
	Code           string
	RawDetail      string
	AccessDisabled bool
}

func (e *ProtocolError) Error() string {
	if e.Code == "" {
		return "ucp: " + e.Message
	}
	return fmt.Sprintf("ucp: %s (code %s)", e.Message, e.Code)
}

func (e *ProtocolError) Unwrap() error { return ErrRemoteRejected }

// IsAccessDisabled reports whether err carries the merchant opt-out condition.
func IsAccessDisabled(err error) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.AccessDisabled
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrRemoteUnavailable, err)
}
