package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

const (
	// JWKSURL publishes the keys that sign Firebase ID tokens.
	JWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	issuerPrefix = "https://securetoken.google.com/"
)

// Verifier checks ID token signatures and the project-bound claims.
type Verifier struct {
	projectID string
	keyfunc   jwt.Keyfunc
	parser    *jwt.Parser
}

// NewVerifier fetches the Firebase JWKS and keeps it refreshed until ctx ends.
func NewVerifier(ctx context.Context, projectID string, logger log.FieldLogger) (*Verifier, error) {
	jwks, err := keyfunc.Get(JWKSURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			if logger != nil {
				logger.WithError(err).Warn("jwks refresh failed")
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return newVerifier(projectID, jwks.Keyfunc, "RS256"), nil
}

func newVerifier(projectID string, kf jwt.Keyfunc, methods ...string) *Verifier {
	return &Verifier{
		projectID: projectID,
		keyfunc:   kf,
		parser:    jwt.NewParser(jwt.WithValidMethods(methods)),
	}
}

// Verify validates idToken and returns its claims.
func (v *Verifier) Verify(idToken string) (Claims, error) {
	token, err := v.parser.Parse(idToken, v.keyfunc)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid id token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	if !claims.VerifyAudience(v.projectID, true) {
		return Claims{}, errors.New("invalid audience")
	}
	if !claims.VerifyIssuer(issuerPrefix+v.projectID, true) {
		return Claims{}, errors.New("invalid issuer")
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return Claims{}, errors.New("missing sub")
	}
	return claimsFromMap(claims)
}
