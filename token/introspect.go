// Package token extracts claims from the console backend's access tokens.
// Tokens are treated as opaque everywhere else; this package exists for the
// one fallback where the login payload omits expires_in and the expiry must
// be read from the JWT itself. No signature verification happens client-side.
package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ExpiresAt parses rawToken without verifying its signature and returns the
// exp claim. Fails if the token is not a JWT or carries no expiry.
func ExpiresAt(rawToken string) (time.Time, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, errors.Wrap(err, "[token.ExpiresAt] parse")
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, errors.New("[token.ExpiresAt] error extracting claims")
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp == 0 {
		return time.Time{}, errors.New("[token.ExpiresAt] token missing exp claim")
	}
	return time.Unix(int64(exp), 0), nil
}

// TTLSeconds returns the remaining lifetime of rawToken relative to now,
// floored at zero.
func TTLSeconds(rawToken string, now time.Time) (int64, error) {
	expiry, err := ExpiresAt(rawToken)
	if err != nil {
		return 0, err
	}
	ttl := expiry.Unix() - now.Unix()
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}
