package auth

import (
	"context"
)

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (TokenResponse, error)

	// EnsureAdmin creates the bootstrap admin when no dashboard user exists yet
	EnsureAdmin(ctx context.Context, email, password string) error
}
