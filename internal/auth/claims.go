package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are the ID token fields taskmate relies on.
type Claims struct {
	UserID string
	Email  string
	Expiry time.Time
}

// ParseUnverified decodes an ID token without checking its signature.
func ParseUnverified(idToken string) (Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(idToken, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("malformed id token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	return claimsFromMap(claims)
}

func claimsFromMap(m jwt.MapClaims) (Claims, error) {
	var c Claims
	if uid, ok := m["user_id"].(string); ok && uid != "" {
		c.UserID = uid
	} else if sub, ok := m["sub"].(string); ok {
		c.UserID = sub
	}
	if c.UserID == "" {
		return Claims{}, errors.New("missing user id")
	}
	c.Email, _ = m["email"].(string)
	if exp, ok := m["exp"].(float64); ok {
		c.Expiry = time.Unix(int64(exp), 0)
	}
	return c, nil
}
