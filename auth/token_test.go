package auth

import (
	"context"
	"testing"
	"time"

	"chat-core/domain"
	apperrors "chat-core/errors"

	"github.com/stretchr/testify/require"
)

const (
	testSecret = "unit-test-secret"
	testIssuer = "chat-core"
)

func TestVerifier_Accepts_A_Valid_Token(t *testing.T) {
	req := require.New(t)
	user := domain.User{ID: "alice", Username: "alice", DisplayName: "Alice A."}
	token, err := GenerateToken(testSecret, testIssuer, user, time.Hour)
	req.NoError(err)

	verifier := NewVerifier(testSecret, testIssuer)

	// When the token is presented at handshake
	verified, err := verifier.Verify(context.Background(), token)

	// Then the carried identity is returned intact
	req.NoError(err)
	req.Equal(user, verified)
}

func TestVerifier_Rejects_Invalid_Credentials(t *testing.T) {
	user := domain.User{ID: "alice", Username: "alice"}
	verifier := NewVerifier(testSecret, testIssuer)

	tests := []struct {
		name       string
		credential func(t *testing.T) string
	}{
		{
			name:       "garbage string",
			credential: func(t *testing.T) string { return "not-a-jwt" },
		},
		{
			name:       "empty credential",
			credential: func(t *testing.T) string { return "" },
		},
		{
			name: "wrong secret",
			credential: func(t *testing.T) string {
				token, err := GenerateToken("some-other-secret", testIssuer, user, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "wrong issuer",
			credential: func(t *testing.T) string {
				token, err := GenerateToken(testSecret, "someone-else", user, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "expired token",
			credential: func(t *testing.T) string {
				token, err := GenerateToken(testSecret, testIssuer, user, -time.Minute)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "missing user id",
			credential: func(t *testing.T) string {
				token, err := GenerateToken(testSecret, testIssuer, domain.User{}, time.Hour)
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			_, err := verifier.Verify(context.Background(), tt.credential(t))

			// Every failure collapses into the same sentinel: the handshake
			// never learns which check failed.
			req.ErrorIs(err, apperrors.ErrAuthenticationFailed)
		})
	}
}
