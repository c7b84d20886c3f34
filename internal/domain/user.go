// Package domain contains core business types for the HomeworkAI backend.
//
// This file defines the User domain type and the auth parameter and
// result shapes. The domain representation is decoupled from the
// repository row types so business logic never depends on SQL shapes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered HomeworkAI account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, hashed by the service
}

// LoginResult bundles the authenticated user with the raw session token
// handed back to the client as a cookie.
type LoginResult struct {
	User         *User
	SessionToken string
	ExpiresAt    time.Time
}
