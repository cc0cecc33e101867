// Package models defines the server-side user record and the views of it
// that may leave the service.
package models

import "time"

// User is the persisted account. PasswordHash and RefreshTokenHash only ever
// hold digests; an empty RefreshTokenHash means no active refresh token.
type User struct {
	ID               string
	Email            string
	PasswordHash     string `json:"-"`
	FirstName        string
	LastName         string
	Phone            string
	Role             string
	IsActive         bool
	RefreshTokenHash string `json:"-"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewUser carries the fields needed to create a user.
type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Role         string
}

// UserSummary is the outbound view of a user. It never carries hashes.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Summary returns the outbound view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}
