package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "without wrapped error",
			err:  &APIError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "Not Found"},
			want: "placemark API client error (status 404): Not Found",
		},
		{
			name: "with wrapped error",
			err: &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			want: "placemark API network error (status 0): request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := fmt.Errorf("load page: %w", &APIError{ErrorClass: ErrorClassNetwork, Err: inner})

	if !errors.Is(err, inner) {
		t.Error("Expected errors.Is to find the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("Expected errors.As to find *APIError")
	}
	if apiErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %q", apiErr.ErrorClass)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{401, ErrorClassClient},
		{404, ErrorClassClient},
		{422, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{502, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClass("unknown"), false},
		{ErrorClass(""), false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestNewAPIError_Message(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message field", `{"message":"folder not found"}`, "folder not found"},
		{"error field", `{"error":"invalid cursor"}`, "invalid cursor"},
		{"plain text", "upstream timeout\n", "upstream timeout"},
		{"empty body", "", "Not Found"},
		{"json without message", `{"code":7}`, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}

			err := newAPIError(resp, ErrorClassClient, "req-1")

			if err.Message != tt.want {
				t.Errorf("Message = %q, want %q", err.Message, tt.want)
			}
			if err.RequestID != "req-1" {
				t.Errorf("RequestID = %q", err.RequestID)
			}
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(fmt.Errorf("wrapped: %w", &APIError{StatusCode: 401})) {
		t.Error("Expected wrapped 401 to be unauthorized")
	}
	if IsUnauthorized(&APIError{StatusCode: 403}) {
		t.Error("403 is not unauthorized")
	}
	if IsUnauthorized(errors.New("plain")) {
		t.Error("plain error is not unauthorized")
	}
	if IsUnauthorized(nil) {
		t.Error("nil is not unauthorized")
	}
}
