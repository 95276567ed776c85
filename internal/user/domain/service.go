package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidEmail = errors.New("invalid_email")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUserNotFound = errors.New("user_not_found")
)

// SignInResult carries the session token back to the client.
type SignInResult struct {
	User    *User  `json:"user"`
	Token   string `json:"token"`
	Created bool   `json:"created"`
}

type Service interface {
	// SignIn provisions the account on first use, credits the welcome
	// bonus, and issues a fresh session token.
	SignIn(ctx context.Context, email, displayName string) (*SignInResult, error)
	// Authenticate resolves the user owning a bearer token.
	Authenticate(ctx context.Context, token string) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
}
