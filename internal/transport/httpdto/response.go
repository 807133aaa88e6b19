package httpdto

import (
	"errors"
	"net/http"

	chat_errors "chatcore/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// FromError builds the error response for err with its stable code.
func FromError(err error) Response[any] {
	return NewErrorResponse(err.Error(), Code(err))
}

var codes = []struct {
	err    error
	code   string
	status int
}{
	{chat_errors.ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{chat_errors.ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{chat_errors.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{chat_errors.ErrConflict, "CONFLICT", http.StatusConflict},
	{chat_errors.ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{chat_errors.ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{chat_errors.ErrPartialCreate, "PARTIAL_CREATE", http.StatusInternalServerError},
	{chat_errors.ErrNotActive, "NOT_ACTIVE", http.StatusConflict},
	{chat_errors.ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
	{chat_errors.ErrServiceUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable},
	{chat_errors.ErrTransportClosed, "CLOSED", http.StatusServiceUnavailable},
}

// Code maps err onto the code clients switch on. Unknown errors are
// INTERNAL_ERROR.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL_ERROR"
}

func Status(err error) int {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}
