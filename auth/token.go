// Package auth verifies the bearer credentials presented during the
// transport handshake. Token issuance lives with the account service;
// the core only ever validates.
package auth

import (
	"context"
	"fmt"
	"time"

	"chat-core/domain"
	apperrors "chat-core/errors"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Verifier validates JWT credentials against a shared HMAC secret.
// It implements contract.AuthVerifier.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates the signature, expiration and issuer of a JWT
// string and returns the identity it carries. Any failure collapses into
// ErrAuthenticationFailed: the handshake gets no detail about why.
func (v *Verifier) Verify(_ context.Context, credential string) (domain.User, error) {
	token, err := jwt.ParseWithClaims(credential, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", apperrors.ErrAuthenticationFailed, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.User{}, apperrors.ErrAuthenticationFailed
	}

	return domain.User{
		ID:          claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
	}, nil
}

// GenerateToken creates a signed JWT for a specific user. Used by tests and
// local tooling; production tokens come from the account service.
func GenerateToken(secret, issuer string, user domain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
