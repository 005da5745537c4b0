package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned after a 401: the session has already been cleared
	// and the login surface requested.
	ErrUnauthorized = errors.New("unauthorized: session cleared, please log in again")

	// ErrOffline is returned when the network probe reports no connectivity.
	ErrOffline = errors.New("no network connection")
)

const fallbackErrorMessage = "request failed"

type ApiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is a non-2xx response reported by the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed: status code %d, message %s", e.StatusCode, e.Message)
}

// TransportError means no response was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
