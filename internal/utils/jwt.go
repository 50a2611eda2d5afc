// Package utils provides token minting for local development and tests.
// Production tokens come from the external auth service; the server itself
// only verifies them.
package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/careerfair-reservation/internal/model"
)

// AccessToken is a signed JWT with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 token carrying the actor as the "sub" and
// "role" claims that the JWT middleware expects.  Organizer tokens carry
// sub 0.  An empty issuer omits the "iss" claim.
func NewAccessToken(secret, issuer string, actor model.Actor, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"role": actor.Kind.String(),
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
