// Package auth verifies bearer tokens issued by the external session
// service and extracts the caller's role. Token issuance, sessions, and
// credential handling live elsewhere; this package only validates.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("authorization token required")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Role is the caller's authorization level, carried in the token claims.
type Role string

const (
	RoleViewer    Role = "viewer"
	RoleTreasurer Role = "treasurer"
	RoleAdmin     Role = "admin"
)

// CanWrite reports whether the role may perform balance-affecting writes.
func (r Role) CanWrite() bool {
	return r == RoleTreasurer || r == RoleAdmin
}

// Claims are the custom JWT claims for a caller session.
type Claims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates tokens signed by the session service.
type Verifier struct {
	secretKey []byte
}

func NewVerifier(secretKey string) *Verifier {
	return &Verifier{secretKey: []byte(secretKey)}
}

// Verify parses and validates a token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secretKey, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
