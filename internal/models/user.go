package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles supplied by the authentication layer.
const (
	RoleAdmin     = "admin"
	RoleStaff     = "staff"
	RoleCandidate = "candidate"
)

// ValidRole reports whether role is one the core understands.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff || role == RoleCandidate
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // "admin", "staff" or "candidate"
	TOTPSecret   string    `json:"-"`
	TOTPEnabled  bool      `json:"totp_enabled"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity the core authorizes against.
func (u User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// HashPassword generates bcrypt hash of the password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares password with hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Actor is the caller identity as given by the authentication layer.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports the admin capability, which bypasses every feature grant.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsCandidate reports a self-service candidate account.
func (a Actor) IsCandidate() bool {
	return a.Role == RoleCandidate
}
