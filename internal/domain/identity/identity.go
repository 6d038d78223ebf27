// Package identity names the owner of a cart: a registered user or a guest session.
package identity

import (
	"errors"
	"strings"
)

const (
	userPrefix  = "user:"
	guestPrefix = "guest:"
)

var ErrInvalidIdentity = errors.New("identity must be user:<id> or guest:<sessionId>")

// ForUser returns the identity of a registered user
func ForUser(userID string) string {
	return userPrefix + userID
}

// ForGuest returns the identity of a guest session
func ForGuest(sessionID string) string {
	return guestPrefix + sessionID
}

// Validate reports whether id is a well-formed identity
func Validate(id string) error {
	var rest string
	switch {
	case strings.HasPrefix(id, userPrefix):
		rest = id[len(userPrefix):]
	case strings.HasPrefix(id, guestPrefix):
		rest = id[len(guestPrefix):]
	default:
		return ErrInvalidIdentity
	}
	if strings.TrimSpace(rest) == "" || strings.ContainsAny(rest, " /\t\n") {
		return ErrInvalidIdentity
	}
	return nil
}

func IsGuest(id string) bool {
	return strings.HasPrefix(id, guestPrefix)
}

// UserID returns the user id of a registered identity, or "" for guests
func UserID(id string) string {
	if !strings.HasPrefix(id, userPrefix) {
		return ""
	}
	return id[len(userPrefix):]
}
