// Package middleware works out who is calling: a signed-in shopper, an admin,
// or a guest identified only by the session id in the request.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/petshop-checkout/internal/auth"
)

type claimsKey struct{}

func respondError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message, "code": code})
}

// bearerToken returns the token of an "Authorization: Bearer" header.
// Tokens come from the external identity provider, never from cookies.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// Shopper attaches the caller's claims when a bearer token is sent. Requests
// without one go on as guests. A token that fails verification is rejected
// so an expired session does not quietly turn into a guest checkout.
func Shopper(jwt *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := jwt.ValidateAccessToken(token)
			if err != nil {
				respondError(w, "invalid or expired token", "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Admin lets through only verified tokens carrying the admin role
func Admin(jwt *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, "sign in to access this resource", "unauthorized", http.StatusUnauthorized)
				return
			}
			claims, err := jwt.ValidateAccessToken(token)
			if err != nil {
				respondError(w, "invalid or expired token", "unauthorized", http.StatusUnauthorized)
				return
			}
			if claims.Role != auth.RoleAdmin {
				respondError(w, "admin role required", "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFrom returns the signed-in caller. ok is false for guests.
func ClaimsFrom(ctx context.Context) (claims *auth.Claims, ok bool) {
	claims, ok = ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

func IsAdmin(ctx context.Context) bool {
	claims, ok := ClaimsFrom(ctx)
	return ok && claims.Role == auth.RoleAdmin
}
