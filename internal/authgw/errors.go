package authgw

import (
	"errors"
	"fmt"
)

// ErrCooldownActive is returned when a resend is requested while the
// cooldown is still running. It is rejected locally; no request is made.
var ErrCooldownActive = errors.New("verification code was just sent, wait for the cooldown")

// Kind classifies an authentication failure.
type Kind int

const (
	// KindInvalidCredentials covers rejected credentials and expired or
	// wrong verification codes.
	KindInvalidCredentials Kind = iota

	// KindNetworkFailure covers transport errors before any server
	// verdict was received.
	KindNetworkFailure

	// KindServerRejected covers server-side failures (5xx).
	KindServerRejected
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetworkFailure:
		return "network_failure"
	case KindServerRejected:
		return "server_rejected"
	default:
		return "unknown"
	}
}

// AuthError is surfaced to the login/registration UI as an inline
// message. It never mutates the session store and is never silently
// retried.
type AuthError struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("auth: %s", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.cause }

func invalidCredentials(message string) *AuthError {
	return &AuthError{Kind: KindInvalidCredentials, Message: message}
}

func networkFailure(err error) *AuthError {
	return &AuthError{Kind: KindNetworkFailure, Message: "could not reach the server", cause: err}
}

func serverRejected(message string) *AuthError {
	return &AuthError{Kind: KindServerRejected, Message: message}
}
