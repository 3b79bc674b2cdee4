package user

import (
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/apperr"
)

var (
	ErrEmailExists        = fmt.Errorf("email already registered: %w", apperr.ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
	ErrUserNotFound       = fmt.Errorf("user: %w", apperr.ErrNotFound)
	errEmptyPassword      = errors.New("password is required")
)

const emailConstraint = "users_email_key"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
