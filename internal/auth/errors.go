package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited        = errors.New("auth: rate limited")
	ErrChallengeFailed    = errors.New("auth: challenge verification failed")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrNotFound           = errors.New("auth: not found")
	ErrAlreadyExists      = errors.New("auth: already exists")
	ErrInvalidInput       = errors.New("auth: invalid input")
)

// RateLimitError carries the computed retry delay alongside ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("auth: rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
