package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type userCtxKey struct{}

// AuthManager verifies HS256 bearer tokens issued by the storefront.
// The subject claim carries the user ID; nothing else is trusted.
type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

// Mint signs a token for the given user. Used by local tooling and
// tests; production tokens come from the storefront's identity service
// sharing the same secret.
func (a *AuthManager) Mint(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) userIDFromRequest(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", errors.New("missing bearer token")
	}
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("token without subject")
	}
	return claims.Subject, nil
}

// RequireUser rejects unauthenticated requests and stashes the caller's
// user ID in the request context.
func (a *AuthManager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.userIDFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, userID)))
	})
}

func userFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userCtxKey{}).(string)
	return id
}
