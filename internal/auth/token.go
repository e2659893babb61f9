package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid covers every signature, expiry, or shape failure a
// caller needs to treat as "reject this request", without leaking
// which check failed.
var ErrTokenInvalid = errors.New("invalid token")

// defaultTTL is how long an issued operator token stays valid when the
// caller doesn't specify one (commissioning sessions are short-lived by
// design).
const defaultTTL = 15 * time.Minute

// Claims is the bridge's single JWT claim shape: a standard registered
// claim set identifying this as an operator token, nothing more.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a short-lived operator token against secret.
func IssueToken(secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "operator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString against secret and returns its claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
