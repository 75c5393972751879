package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of user API failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures: refused connections,
	// timeouts, requests blocked by the gate.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassMalformed represents bodies that are not valid JSON.
	ErrorClassMalformed ErrorClass = "malformed"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context ends during a backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRequestBlocked is returned when the request gate refuses a request.
	ErrRequestBlocked = errors.New("request blocked: user API request budget exhausted")

	// ErrInvalidUser is returned when a new user fails validation.
	ErrInvalidUser = errors.New("invalid user")
)

// APIError is a failed exchange with the user API.
type APIError struct {
	// StatusCode is the HTTP status, 0 for transport and decoding failures.
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var msg string
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("user API %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
	} else {
		msg = fmt.Sprintf("user API %s error: %s", e.ErrorClass, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ClassOf returns the ErrorClass carried by err, or "".
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// classifyStatus maps an HTTP status to an ErrorClass; "" for success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 500:
		return ErrorClassServer
	case status >= 400:
		return ErrorClassClient
	default:
		return ""
	}
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx will not change on retry; malformed bodies neither.
		return false
	}
}
