package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the verified caller extracted from a Supabase access
// token. Handlers receive it explicitly through the request context;
// nothing downstream re-parses the token.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Claims represents the Supabase access token claims we consume
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerifyToken validates a Supabase HS256 access token and extracts the
// caller's identity. The subject claim is the identity platform's user
// id and must be a UUID.
func VerifyToken(tokenString, secret string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	return &Identity{UserID: userID, Email: claims.Email}, nil
}

type contextKey struct{}

// WithIdentity returns a context carrying the verified identity
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext extracts the verified identity, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}
