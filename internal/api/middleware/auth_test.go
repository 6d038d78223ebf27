package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/petshop-checkout/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtService = auth.NewJWTService("test-secret-key", 15*time.Minute)

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, _, err := jwtService.GenerateAccessToken(userID, userID+"@petshop.test", role)
	require.NoError(t, err)
	return token
}

// serve runs mw around a handler that records the claims it was given
func serve(mw func(http.Handler) http.Handler, authorization string) (*httptest.ResponseRecorder, *auth.Claims, bool) {
	var (
		got    *auth.Claims
		called bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart/guest:s1", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec, got, called
}

// ============================================
// Shopper Tests
// ============================================

func TestShopper_SignedInCustomer(t *testing.T) {
	rec, claims, called := serve(Shopper(jwtService), "Bearer "+tokenFor(t, "u1", auth.RoleCustomer))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, called)
	require.NotNil(t, claims)
	assert.Equal(t, "user:u1", claims.Identity())
}

func TestShopper_GuestPassesWithoutClaims(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
	}{
		{"no header", ""},
		{"other scheme", "Basic dTE6cHc="},
		{"empty bearer", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, claims, called := serve(Shopper(jwtService), tt.authorization)
			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.True(t, called)
			assert.Nil(t, claims)
		})
	}
}

func TestShopper_RejectsBadToken(t *testing.T) {
	expired, _, err := auth.NewJWTService("test-secret-key", -time.Minute).GenerateAccessToken("u1", "u1@petshop.test", auth.RoleCustomer)
	require.NoError(t, err)
	foreign, _, err := auth.NewJWTService("other-secret", time.Minute).GenerateAccessToken("u1", "u1@petshop.test", auth.RoleAdmin)
	require.NoError(t, err)

	for name, token := range map[string]string{"garbage": "not-a-jwt", "expired": expired, "wrong secret": foreign} {
		t.Run(name, func(t *testing.T) {
			rec, _, called := serve(Shopper(jwtService), "Bearer "+token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called)
		})
	}
}

func TestShopper_SchemeIsCaseInsensitive(t *testing.T) {
	_, claims, _ := serve(Shopper(jwtService), "bearer "+tokenFor(t, "u2", auth.RoleCustomer))
	require.NotNil(t, claims)
	assert.Equal(t, "u2", claims.UserID)
}

// ============================================
// Admin Tests
// ============================================

func TestAdmin(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantCode      string
	}{
		{"admin", "Bearer " + tokenFor(t, "boss", auth.RoleAdmin), http.StatusNoContent, ""},
		{"customer", "Bearer " + tokenFor(t, "u1", auth.RoleCustomer), http.StatusForbidden, "forbidden"},
		{"guest", "", http.StatusUnauthorized, "unauthorized"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, claims, called := serve(Admin(jwtService), tt.authorization)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode == "" {
				assert.True(t, called)
				require.NotNil(t, claims)
				assert.Equal(t, auth.RoleAdmin, claims.Role)
				return
			}
			assert.False(t, called)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

// ============================================
// Context Tests
// ============================================

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAdmin(ctx))
	assert.False(t, IsAdmin(WithClaims(ctx, &auth.Claims{UserID: "u1", Role: auth.RoleCustomer})))
	assert.True(t, IsAdmin(WithClaims(ctx, &auth.Claims{UserID: "boss", Role: auth.RoleAdmin})))
}

func TestClaimsFrom_Guest(t *testing.T) {
	claims, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)
	assert.Nil(t, claims)
}
