package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
)

// User is the owning principal of calendars, archives and operations. The
// auth system manages these rows; this layer only reads them.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func New(email, username string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("INVALID_EMAIL", "user requires a valid email address")
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.NewValidationError("MISSING_USERNAME", "user requires a username")
	}

	return &User{
		ID:        uuid.New(),
		Email:     email,
		Username:  username,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MatchesAccount reports whether an account token from a resource URI refers
// to this user. Email comparison is case-insensitive, username comparison is
// case-sensitive, and the user's id string matches regardless of case.
func (u *User) MatchesAccount(account string) bool {
	account = strings.TrimSpace(account)
	if account == "" {
		return false
	}
	if strings.EqualFold(account, u.Email) {
		return true
	}
	if account == u.Username {
		return true
	}
	return strings.EqualFold(account, u.ID.String())
}

// ModelType implements the audit model projection contract.
func (u *User) ModelType() string { return "User" }

// TableName implements the audit model projection contract.
func (u *User) TableName() string { return "users" }

// IdentityFields implements the audit model projection contract.
func (u *User) IdentityFields() map[string]interface{} {
	return map[string]interface{}{
		"id":       u.ID.String(),
		"email":    u.Email,
		"username": u.Username,
	}
}
