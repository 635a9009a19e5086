package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"taskmate/internal/config"
)

const (
	// SecureTokenURL exchanges refresh tokens for new ID tokens.
	SecureTokenURL = "https://securetoken.googleapis.com/v1/token"

	// APITimeout is the timeout for auth calls.
	APITimeout = 10 * time.Second
)

// Client implements Provider using Firebase Authentication.
type Client struct {
	svc        *identitytoolkit.Service
	httpClient *http.Client
	tokenURL   string
	now        func() time.Time
}

// apiKeyTransport appends the project API key to every request.
type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	q := req.URL.Query()
	q.Set("key", t.key)
	req.URL.RawQuery = q.Encode()
	return t.base.RoundTrip(req)
}

// New creates a Firebase auth client for the configured project. When
// firebase.auth_endpoint is set (e.g. the Auth emulator), both Google
// hosts are addressed below it.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.Firebase.APIKey == "" {
		return nil, ErrNotConfigured
	}
	endpoint, tokenURL := "", SecureTokenURL
	if base := strings.TrimSuffix(cfg.Firebase.AuthEndpoint, "/"); base != "" {
		endpoint = base + "/www.googleapis.com/identitytoolkit/v3/relyingparty/"
		tokenURL = base + "/securetoken.googleapis.com/v1/token"
	}
	return NewWithHTTPClient(ctx, http.DefaultClient, cfg.Firebase.APIKey, endpoint, tokenURL)
}

// NewWithHTTPClient creates a client with a custom HTTP client and endpoints
// (for testing). An empty endpoint keeps the Google default.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, apiKey, endpoint, tokenURL string) (*Client, error) {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	keyed := &http.Client{
		Transport: &apiKeyTransport{key: apiKey, base: base},
		Timeout:   httpClient.Timeout,
	}

	opts := []option.ClientOption{option.WithHTTPClient(keyed)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit service: %w", err)
	}
	return &Client{svc: svc, httpClient: keyed, tokenURL: tokenURL, now: time.Now}, nil
}

// SignIn exchanges an email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := c.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return Identity{}, wrapError("sign in", err)
	}
	return Identity{
		UserID:       resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		Expiry:       c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// SignUp registers a new account and returns its first session.
func (c *Client) SignUp(ctx context.Context, email, password string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	resp, err := c.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return Identity{}, wrapError("sign up", err)
	}
	return Identity{
		UserID:       resp.LocalId,
		Email:        resp.Email,
		IDToken:      resp.IdToken,
		RefreshToken: resp.RefreshToken,
		Expiry:       c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

// Refresh trades a refresh token for a fresh ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < 500 {
			return Identity{}, ErrSessionExpired
		}
		return Identity{}, fmt.Errorf("refresh session: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return Identity{}, errors.New("refresh session: response has no id_token")
	}
	claims, err := ParseUnverified(idToken)
	if err != nil {
		return Identity{}, fmt.Errorf("refresh session: %w", err)
	}

	id := Identity{
		UserID:       claims.UserID,
		Email:        claims.Email,
		IDToken:      idToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if uid, ok := tok.Extra("user_id").(string); ok && uid != "" {
		id.UserID = uid
	}
	if id.RefreshToken == "" {
		id.RefreshToken = refreshToken
	}
	return id, nil
}

// wrapError maps Identity Toolkit error codes to the package errors.
func wrapError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: request timed out", op)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	code := gerr.Message
	switch {
	case strings.HasPrefix(code, "EMAIL_NOT_FOUND"),
		strings.HasPrefix(code, "INVALID_PASSWORD"),
		strings.HasPrefix(code, "INVALID_LOGIN_CREDENTIALS"),
		strings.HasPrefix(code, "INVALID_EMAIL"):
		return ErrInvalidCredentials
	case strings.HasPrefix(code, "EMAIL_EXISTS"):
		return ErrEmailExists
	case strings.HasPrefix(code, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case strings.HasPrefix(code, "USER_DISABLED"):
		return fmt.Errorf("%s: account disabled", op)
	case strings.HasPrefix(code, "TOO_MANY_ATTEMPTS_TRY_LATER"):
		return fmt.Errorf("%s: too many attempts, try again later", op)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
