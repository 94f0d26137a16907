package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"invalid credentials", &InvalidCredentialsError{}, IsInvalidCredentials},
		{"expired token", &ExpiredTokenError{Detail: "x"}, IsExpiredToken},
		{"service unavailable", &ServiceUnavailableError{Detail: "x"}, IsServiceUnavailable},
		{"unknown endpoint", &UnknownEndpointError{Endpoint: "x"}, IsUnknownEndpoint},
		{"flow protocol", &FlowProtocolError{Step: "x"}, IsFlowProtocol},
	}

	predicates := []func(error) bool{
		IsInvalidCredentials, IsExpiredToken, IsServiceUnavailable, IsUnknownEndpoint, IsFlowProtocol,
	}

	for i, tt := range tests {
		tt, i := tt, i
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !tt.check(tt.err) {
				t.Errorf("predicate rejected its own error %v", tt.err)
			}
			// Wrapped errors still match.
			if !tt.check(fmt.Errorf("outer: %w", tt.err)) {
				t.Errorf("predicate rejected wrapped error %v", tt.err)
			}
			for j, other := range predicates {
				if j != i && other(tt.err) {
					t.Errorf("predicate %d matched foreign error %v", j, tt.err)
				}
			}
		})
	}
}

func TestErrorPredicatesRejectNil(t *testing.T) {
	t.Parallel()
	if IsExpiredToken(nil) || IsInvalidCredentials(nil) {
		t.Error("predicates must reject nil")
	}
	if IsServiceUnavailable(errors.New("plain")) {
		t.Error("predicates must reject untyped errors")
	}
}

func TestStatusCodeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code  string
		known bool
		check func(error) bool
	}{
		{"1", true, IsInvalidCredentials},
		{"2", true, IsInvalidCredentials},
		{"3", true, IsExpiredToken},
		{"4", true, IsExpiredToken},
		{"5", true, IsServiceUnavailable},
		{"42", false, nil},
		{"", false, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run("code "+tt.code, func(t *testing.T) {
			t.Parallel()
			err, known := statusCodeError(tt.code)
			if known != tt.known {
				t.Fatalf("statusCodeError(%q) known = %v, want %v", tt.code, known, tt.known)
			}
			if tt.known && !tt.check(err) {
				t.Errorf("statusCodeError(%q) = %v, wrong type", tt.code, err)
			}
		})
	}
}

func TestServiceUnavailableUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := &ServiceUnavailableError{Detail: "request failed", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("ServiceUnavailableError should unwrap to its cause")
	}
}
