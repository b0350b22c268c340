package repository

import "errors"

var (
	// ErrNotFound is returned for absent conversations and identities.
	ErrNotFound = errors.New("not found")
	// ErrTokenInvalid covers unknown, already used and expired login tokens.
	ErrTokenInvalid = errors.New("token invalid or expired")
	// ErrTokenEmailMismatch indicates the token was issued for another email.
	// The token is left unused.
	ErrTokenEmailMismatch = errors.New("token does not match email")
)
