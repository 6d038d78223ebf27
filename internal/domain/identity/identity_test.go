package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"registered user", ForUser("u-123"), false},
		{"guest session", ForGuest("9f1c"), false},
		{"missing prefix", "u-123", true},
		{"empty user id", "user:", true},
		{"blank guest id", "guest:  ", true},
		{"path separator", "user:a/b", true},
		{"unknown kind", "admin:1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentity)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "u-1", UserID(ForUser("u-1")))
	assert.Equal(t, "", UserID(ForGuest("s-1")))
	assert.True(t, IsGuest(ForGuest("s-1")))
	assert.False(t, IsGuest(ForUser("u-1")))
}
