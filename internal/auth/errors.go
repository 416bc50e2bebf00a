package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: session not found")
	ErrUnauthenticated    = errors.New("auth: unauthenticated")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
