package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, &Claims{
		Email: "grace@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	identity, err := VerifyToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "grace@example.com", identity.Email)
}

func TestVerifyToken_Errors(t *testing.T) {
	userID := uuid.New()

	valid := func(subject string, exp time.Time) *Claims {
		return &Claims{
			Email: "grace@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   subject,
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{
			"wrong secret",
			signToken(t, "some-other-secret-that-is-long-enough!!", valid(userID.String(), time.Now().Add(time.Hour))),
		},
		{
			"expired",
			signToken(t, testSecret, valid(userID.String(), time.Now().Add(-time.Hour))),
		},
		{
			"subject is not a uuid",
			signToken(t, testSecret, valid("service-role", time.Now().Add(time.Hour))),
		},
		{
			"garbage",
			"not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyToken(tt.token, testSecret)
			assert.Error(t, err)
		})
	}
}

func TestVerifyToken_RejectsUnsignedToken(t *testing.T) {
	userID := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyToken(token, testSecret)
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	id := &Identity{UserID: uuid.New(), Email: "grace@example.com"}

	ctx := WithIdentity(context.Background(), id)
	got, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = IdentityFromContext(context.Background())
	assert.False(t, ok)
}
