package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorClass represents the classification of an API error.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors (do not retry)
	ErrorClassClient ErrorClass = "client"
	// ErrorClassServer represents 5xx server errors (retry)
	ErrorClassServer ErrorClass = "server"
	// ErrorClassRateLimit represents 429 Too Many Requests (retry with longer backoff)
	ErrorClassRateLimit ErrorClass = "rate_limit"
	// ErrorClassNetwork represents transport failures (retry)
	ErrorClassNetwork ErrorClass = "network"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the local rate limiter blocks a request.
	ErrRateLimited = errors.New("request blocked by rate limiter")
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 4 << 10

// APIError represents a failed API call with its classification.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	RequestID  string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("placemark API %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("placemark API %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 response.
// Screens use it to send the user back to sign-in.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// newAPIError builds an APIError from a failed response and closes its body.
// The message is taken from a JSON {"message": ...} body when present.
func newAPIError(resp *http.Response, class ErrorClass, requestID string) *APIError {
	defer resp.Body.Close()

	message := http.StatusText(resp.StatusCode)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	switch {
	case json.Unmarshal(body, &payload) == nil && payload.Message != "":
		message = payload.Message
	case payload.Error != "":
		message = payload.Error
	case len(body) > 0 && !strings.HasPrefix(strings.TrimSpace(string(body)), "{"):
		message = strings.TrimSpace(string(body))
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    message,
		RequestID:  requestID,
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are not retried
		return false
	case ErrorClassServer:
		return true
	case ErrorClassRateLimit:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
