package utils // package utils provides helper functions for token creation and hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// NewServiceToken builds and signs an HS256 JWT identifying an internal
// caller (the reservation worker) on the loopback completion endpoint.  The
// token carries subject, issued-at and expiration claims.  The ttl should
// comfortably outlive the longest-running job.
func NewServiceToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
