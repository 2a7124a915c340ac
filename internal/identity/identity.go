// Package identity provides authentication: who is signed in and how they
// sign in, sign up and sign out.
package identity

import (
	"context"
	"errors"
	"strings"
)

type Identity struct {
	UID   string
	Email string
}

// EmailLocalPart returns the part of the email before '@'
func (i Identity) EmailLocalPart() string {
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}

// Provider is the identity capability consumed by the session layer.
//
// OnAuthStateChange delivers the current identity right away and then every
// change; nil means signed out. Deliveries for one listener are ordered.
type Provider interface {
	OnAuthStateChange(fn func(*Identity)) (cancel func())
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	// CreateAccount registers and signs in the new account
	CreateAccount(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Close() error
}

// Factory opens an independent provider instance
type Factory func() (Provider, error)

type AuthCode string

const (
	CodeInvalidEmail      AuthCode = "invalid-email"
	CodeInvalidCredential AuthCode = "invalid-credential"
	CodeEmailInUse        AuthCode = "email-already-in-use"
	CodeWeakPassword      AuthCode = "weak-password"
	CodeTooManyRequests   AuthCode = "too-many-requests"
	CodeInvalidToken      AuthCode = "invalid-token"
)

// AuthError is an authentication failure. Auth errors are shown to the user
// and never retried automatically.
type AuthError struct {
	Code AuthCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth/" + string(e.Code) + ": " + e.Err.Error()
	}
	return "auth/" + string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func authError(code AuthCode) error {
	return &AuthError{Code: code}
}

// CodeOf extracts the auth code from err
func CodeOf(err error) (AuthCode, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code, true
	}
	return "", false
}

const (
	DefaultLoginMessage        = "An error occurred during login. Please try again."
	DefaultRegistrationMessage = "An error occurred during registration. Please try again."
)

// FriendlyMessage maps an auth error to the text shown to the user.
// fallback is used for errors without a known code.
func FriendlyMessage(err error, fallback string) string {
	code, ok := CodeOf(err)
	if !ok {
		return fallback
	}

	switch code {
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeInvalidCredential:
		return "Invalid email or password. Please try again."
	case CodeTooManyRequests:
		return "Access to this account has been temporarily disabled. Please reset your password or try again later."
	case CodeEmailInUse:
		return "This email address is already registered. Please login."
	case CodeWeakPassword:
		return "Your password is too weak. Please choose a stronger one."
	case CodeInvalidToken:
		return "Your session has expired. Please login again."
	default:
		return fallback
	}
}
