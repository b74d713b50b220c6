// Package identity manages local accounts, the session, and the best effort
// mirror of accounts into the hosted users table.
package identity

import (
	"time"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/supabase"
)

// Sentinel errors.
var (
	ErrDuplicateEmail     = errors.NewStd("email already registered")
	ErrDuplicateUsername  = errors.NewStd("username already exists")
	ErrInvalidCredentials = errors.NewStd("invalid email or password")
)

// User is a signed in or looked up account.
type User struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	JoinDate time.Time `json:"joinDate"`
}

// remoteUser is a row of the hosted users table.
type remoteUser struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"password_hash,omitempty"`
	CreatedAt    string  `json:"created_at"`
	LastLogin    *string `json:"last_login,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

func (r remoteUser) toUser() User {
	return User{
		ID:       r.ID,
		Email:    r.Email,
		Username: r.Username,
		JoinDate: supabase.ParseTimestamp(r.CreatedAt),
	}
}

// newRemoteUser is the insert body of a mirrored account.
type newRemoteUser struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

var (
	lookupColumns = []string{"id", "email", "username", "created_at"}
	signInColumns = []string{"id", "email", "username", "created_at", "last_login", "is_active"}
)
