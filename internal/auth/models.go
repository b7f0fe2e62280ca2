package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Every file record and storage profile hangs
// off the account's id as its owner.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  *string
	IsAdmin      bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SafeUser strips the password hash for response payloads.
func (u User) SafeUser() User {
	u.PasswordHash = ""
	return u
}

// TokenPair is what register and login hand back: a short-lived access token
// and the refresh token that outlives it.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}
