package service

import (
	"errors"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository"
)

var (
	ErrDomainNotAllowed      = errors.New("email domain is not allowed")
	ErrInvalidEmail          = errors.New("invalid email address")
	ErrTokenInvalidOrExpired = repository.ErrTokenInvalid
	ErrTokenEmailMismatch    = repository.ErrTokenEmailMismatch
	ErrInvalidCredential     = errors.New("invalid credential")
	ErrNotFound              = errors.New("conversation not found")
	ErrEmptyMessage          = errors.New("message is required")
	// ErrGenerationFailed wraps upstream provider failures; the upstream text
	// stays in the error chain.
	ErrGenerationFailed = errors.New("generation call failed")
	// ErrNotificationFailed is logged by Register and never returned.
	ErrNotificationFailed = errors.New("notification delivery failed")
)
