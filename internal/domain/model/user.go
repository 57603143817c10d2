package model

import (
	"time"

	"membership-platform/internal/domain"
)

type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

// User is the directory entry the order and membership subsystems hang off.
type User struct {
	ID           string // UUID
	Email        string
	DisplayName  string
	PasswordHash string // bcrypt, never serialized outward
	Role         UserRole
	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewUser(id, email, displayName, passwordHash string) (*User, error) {
	if id == "" || email == "" || passwordHash == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         UserRoleMember,
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil
}
