package model

import (
	"fmt"
	"time"
)

// Response is the standard API envelope for all haven endpoints.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Error     *APIError `json:"error"`
}

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrBadRequest ErrorCode = "BAD_REQUEST"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the haven API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a BAD_REQUEST APIError.
func NewBadRequestError(format string, args ...any) *APIError {
	return &APIError{Code: ErrBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}
