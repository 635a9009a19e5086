// Package auth signs users in against Firebase Authentication, keeps the
// current session on disk and tells interested parties who the owner is.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotSignedIn is returned when an operation needs a session and none exists.
	ErrNotSignedIn = errors.New("not signed in (run: taskmate login)")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailExists is returned by sign-up when the email is already registered.
	ErrEmailExists = errors.New("email already registered")

	// ErrWeakPassword is returned by sign-up when the password is rejected.
	ErrWeakPassword = errors.New("password should be at least 6 characters")

	// ErrNotConfigured is returned when no Firebase API key is configured.
	ErrNotConfigured = errors.New("firebase.api_key is not set in config.yaml")

	// ErrSessionExpired is returned when the refresh token is no longer accepted.
	ErrSessionExpired = errors.New("session expired (run: taskmate login)")
)

// Identity is a signed-in user and the tokens of their session.
type Identity struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// expiresWithin reports whether the ID token expires before now+d.
func (i Identity) expiresWithin(now time.Time, d time.Duration) bool {
	return i.Expiry.IsZero() || !now.Add(d).Before(i.Expiry)
}

// Provider is an email and password identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password string) (Identity, error)
	Refresh(ctx context.Context, refreshToken string) (Identity, error)
}
