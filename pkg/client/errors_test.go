package client

import (
	"errors"
	"net/http"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		class    ErrorClass
		expected bool
	}{
		{name: "auth error should not retry", class: ErrorClassAuth, expected: false},
		{name: "client error should not retry", class: ErrorClassClient, expected: false},
		{name: "parse error should not retry", class: ErrorClassParse, expected: false},
		{name: "server error should retry", class: ErrorClassServer, expected: true},
		{name: "rate limit should retry", class: ErrorClassRateLimit, expected: true},
		{name: "network error should retry", class: ErrorClassNetwork, expected: true},
		{name: "empty error class should not retry", class: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.class)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, result, tt.expected)
			}
		})
	}
}

func TestClassForStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusUnauthorized, ErrorClassAuth},
		{http.StatusForbidden, ErrorClassAuth},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classForStatus(tt.status); got != tt.expected {
			t.Errorf("classForStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 429,
				Class:      ErrorClassRateLimit,
				Message:    "Rate limit exceeded",
			},
			expected: "provider rate_limit error (status 429): Rate limit exceeded",
		},
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 200,
				Class:      ErrorClassParse,
				Message:    "malformed response body",
				Err:        errors.New("unexpected EOF"),
			},
			expected: "provider parse error (status 200): malformed response body: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &APIError{StatusCode: 0, Class: ErrorClassNetwork, Message: "request failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Error("errors.As should match *APIError")
	}
}

func TestIsAuthError(t *testing.T) {
	authErr := &APIError{StatusCode: 401, Class: ErrorClassAuth, Message: "invalid token"}
	if !IsAuthError(authErr) {
		t.Error("IsAuthError should be true for auth-class APIError")
	}
	if IsAuthError(&APIError{StatusCode: 500, Class: ErrorClassServer}) {
		t.Error("IsAuthError should be false for server-class APIError")
	}
	if IsAuthError(errors.New("plain error")) {
		t.Error("IsAuthError should be false for plain errors")
	}
}

func TestClassify(t *testing.T) {
	if got := classify(&APIError{Class: ErrorClassRateLimit}); got != ErrorClassRateLimit {
		t.Errorf("classify(APIError) = %q, want rate_limit", got)
	}
	if got := classify(errors.New("dial tcp: timeout")); got != ErrorClassNetwork {
		t.Errorf("classify(plain error) = %q, want network", got)
	}
}
