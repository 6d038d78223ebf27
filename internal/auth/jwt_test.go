package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService() *JWTService {
	return NewJWTService(testSecret, 15*time.Minute)
}

// ============================================
// GenerateAccessToken Tests
// ============================================

func TestJWTService_GenerateAccessToken_Success(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.GenerateAccessToken("user-123", "test@example.com", RoleCustomer)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
	assert.Equal(t, 15*time.Minute, service.GetAccessTokenExpiry())
}

// ============================================
// ValidateAccessToken Tests
// ============================================

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService()

	token, _, err := service.GenerateAccessToken("user-456", "test@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "user-456", claims.Subject)
	assert.Equal(t, "user:user-456", claims.Identity())
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := newTestJWTService()
	service.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, _, err := service.GenerateAccessToken("user-1", "a@b.c", RoleCustomer)
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_ValidateAccessToken_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService("another-secret-key-that-is-long-enough", time.Minute).
		GenerateAccessToken("user-1", "a@b.c", RoleCustomer)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_Malformed(t *testing.T) {
	_, err := newTestJWTService().ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		UserID: "user-1",
		Role:   RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestJWTService().ValidateAccessToken(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_ValidateAccessToken_RequiresUserID(t *testing.T) {
	service := newTestJWTService()
	token, _, err := service.GenerateAccessToken("", "a@b.c", RoleCustomer)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
