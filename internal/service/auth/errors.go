package auth

import "errors"

// Common errors returned by token verification.
var (
	// ErrInvalidToken indicates the token is malformed, has a bad
	// signature, or was signed with an unexpected method.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry time has passed.
	ErrExpiredToken = errors.New("token expired")
)
