package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired  = errors.New("auth: user token expired")
	ErrTokenMismatch = errors.New("auth: user token does not belong to user")
)

// UserClaims are the claims a host application signs into the end-user JWT.
// The widget cannot verify them (the signing secret stays on the host's
// server) but it refuses to send a token that is obviously unusable.
type UserClaims struct {
	UserID string `json:"userId"`
	Scope  string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// InspectUserToken decodes token without verifying its signature and checks
// expiry and, when userID is set, the userId claim.
func InspectUserToken(token, userID string, now time.Time) (*UserClaims, error) {
	claims := &UserClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("auth: malformed user token: %w", err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if userID != "" && claims.UserID != "" && claims.UserID != userID {
		return nil, ErrTokenMismatch
	}
	return claims, nil
}

// BridgeClaims authenticate a host application against the local bridge.
type BridgeClaims struct {
	jwt.RegisteredClaims
}

func NewToken(secret, subject string, ttl time.Duration) (string, error) {
	claims := BridgeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			Issuer:    "widgetd",
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

func ParseToken(secret, token string) (*BridgeClaims, error) {
	tok, err := jwt.ParseWithClaims(token, &BridgeClaims{}, func(tok *jwt.Token) (interface{}, error) {
		// Ensure the token is using HMAC (HS256, HS384, HS512)
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := tok.Claims.(*BridgeClaims); ok && tok.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
