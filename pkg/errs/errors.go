// Package errs defines the error taxonomy shared by the extractors,
// the authorizer and the identity provider client. Controllers translate
// these into the uniform {"error": ...} envelope.
package errs

import "fmt"

// Unauthenticated means the request carried no usable identity evidence.
type Unauthenticated struct {
	Msg string
}

func NewUnauthenticated(msg string) *Unauthenticated { return &Unauthenticated{Msg: msg} }

func (e *Unauthenticated) Error() string { return e.Msg }

// InvalidToken means a bearer token was present but structurally malformed.
// Signature validity is never checked here, that is delegated upstream.
type InvalidToken struct {
	Msg string
}

func NewInvalidToken(msg string) *InvalidToken { return &InvalidToken{Msg: msg} }

func (e *InvalidToken) Error() string { return e.Msg }

// Forbidden means the identity is authenticated but lacks a required
// role or group. The unmet requirement is kept for the response message.
type Forbidden struct {
	RequiredRoles  []string
	RequiredGroups []string
}

func (e *Forbidden) Error() string {
	if len(e.RequiredGroups) > 0 {
		return fmt.Sprintf("Access denied. Required: roles %v or groups %v", e.RequiredRoles, e.RequiredGroups)
	}
	return fmt.Sprintf("Access denied. Required: roles %v", e.RequiredRoles)
}

// AuthError is a credential rejection by the identity provider,
// carrying the provider's error description verbatim.
type AuthError struct {
	Description string
}

func NewAuthError(description string) *AuthError { return &AuthError{Description: description} }

func (e *AuthError) Error() string { return e.Description }

// NotFound means the target user does not exist in the provider realm.
type NotFound struct {
	Msg string
}

func NewNotFound(msg string) *NotFound { return &NotFound{Msg: msg} }

func (e *NotFound) Error() string { return e.Msg }

// InvalidOldPassword means the provider explicitly rejected the old
// password supplied to a change-password request.
type InvalidOldPassword struct{}

func (e *InvalidOldPassword) Error() string { return "Invalid old password" }

// ChangePasswordFailed means the provider's password update returned an
// unexpected status.
type ChangePasswordFailed struct {
	Msg string
}

func NewChangePasswordFailed(msg string) *ChangePasswordFailed {
	return &ChangePasswordFailed{Msg: msg}
}

func (e *ChangePasswordFailed) Error() string { return e.Msg }

// ProviderUnavailable is a transport level failure talking to the
// identity provider (connection refused, timeout, DNS). Reported to
// callers as 503, never retried.
type ProviderUnavailable struct {
	Err error
}

func NewProviderUnavailable(err error) *ProviderUnavailable { return &ProviderUnavailable{Err: err} }

func (e *ProviderUnavailable) Error() string {
	return fmt.Sprintf("identity provider unavailable: %v", e.Err)
}

func (e *ProviderUnavailable) Unwrap() error { return e.Err }

// UnexpectedUpstreamFailure is a non-2xx provider response not covered
// by a more specific kind.
type UnexpectedUpstreamFailure struct {
	Status int
	Body   string
}

func (e *UnexpectedUpstreamFailure) Error() string {
	return fmt.Sprintf("unexpected response from identity provider: status %d", e.Status)
}
