package chat_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAlreadyExists      = errors.New("already exists")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTransportClosed    = errors.New("transport closed")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// Conversation and session errors
var (
	// ErrPartialCreate is returned when the conversation row was written but
	// adding its participants failed. The row is left in place.
	ErrPartialCreate = errors.New("conversation partially created")
	// ErrNotActive is returned for operations that need an active conversation.
	ErrNotActive = errors.New("no active conversation")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
