package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for missing, malformed, expired, or
// wrongly-signed credentials. Callers must treat it as fatal for the
// connection.
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks a connection-time credential and yields a stable user id.
type Verifier interface {
	Verify(token string) (int64, error)
}

// Claims is the JWT payload issued by the external auth service.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed bearer tokens locally using the shared
// secret of the token issuer.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the embedded user id.
func (v *JWTVerifier) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
