// Package auth implements the Anglian Water session lifecycle: credential
// handling, token state tracking, the endpoint catalog, and the expiry-aware
// request dispatcher shared by both authenticator variants.
package auth

import (
	"errors"
	"fmt"
)

// InvalidCredentialsError indicates the vendor rejected the supplied
// identity or secret. It is fatal to the current login attempt and is
// never retried automatically.
type InvalidCredentialsError struct {
	// Detail is an optional vendor-provided description of the rejection.
	Detail string
}

// Error returns a string representation of the credential rejection.
func (e *InvalidCredentialsError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid credentials: %s", e.Detail)
	}
	return "invalid credentials"
}

// ExpiredTokenError indicates the access token is missing, invalid or
// expired. The dispatcher recovers from exactly one occurrence per call by
// forcing a refresh; a second occurrence surfaces this error.
type ExpiredTokenError struct {
	// Detail describes where the expiry was detected.
	Detail string
}

// Error returns a string representation of the token expiry.
func (e *ExpiredTokenError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("access token expired: %s", e.Detail)
	}
	return "access token expired"
}

// ServiceUnavailableError indicates a remote-side outage signal or a
// transport-level failure. The access token is invalidated so the next
// cycle performs a fresh login; callers should back off and retry the
// whole operation later.
type ServiceUnavailableError struct {
	// Detail describes the outage signal.
	Detail string
	// Cause is the underlying transport error, if any.
	Cause error
}

// Error returns a string representation of the outage.
func (e *ServiceUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("service unavailable: %s (caused by: %v)", e.Detail, e.Cause)
	}
	return fmt.Sprintf("service unavailable: %s", e.Detail)
}

// Unwrap exposes the underlying transport error for errors.Is/As chains.
func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// UnknownEndpointError indicates either an endpoint name missing from the
// catalog or a response whose shape the dispatcher does not recognise
// (non-JSON content, or an unmapped vendor status code). RawBody carries
// the raw payload for diagnostics.
type UnknownEndpointError struct {
	// Endpoint is the logical endpoint name that was dispatched.
	Endpoint string
	// StatusCode is the unrecognised vendor status code, if one was present.
	StatusCode string
	// RawBody holds the raw response payload for diagnosis.
	RawBody []byte
}

// Error returns a string representation of the unrecognised response.
func (e *UnknownEndpointError) Error() string {
	switch {
	case e.StatusCode != "":
		return fmt.Sprintf("endpoint %s: unrecognised vendor status code %q", e.Endpoint, e.StatusCode)
	case len(e.RawBody) > 0:
		return fmt.Sprintf("endpoint %s: unexpected response shape", e.Endpoint)
	default:
		return fmt.Sprintf("unknown endpoint %q", e.Endpoint)
	}
}

// FlowProtocolError indicates the PKCE flow's assumptions about the vendor's
// page or redirect structure were violated. It is fatal and signals the
// vendor changed its login choreography; it is never retried.
type FlowProtocolError struct {
	// Step names the flow state in which the violation was observed.
	Step string
	// Detail describes the missing or malformed artifact.
	Detail string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a string representation of the protocol violation.
func (e *FlowProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("login flow protocol violation at %s: %s (caused by: %v)", e.Step, e.Detail, e.Cause)
	}
	return fmt.Sprintf("login flow protocol violation at %s: %s", e.Step, e.Detail)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *FlowProtocolError) Unwrap() error { return e.Cause }

// IsInvalidCredentials reports whether err is an InvalidCredentialsError.
func IsInvalidCredentials(err error) bool {
	var target *InvalidCredentialsError
	return errors.As(err, &target)
}

// IsExpiredToken reports whether err is an ExpiredTokenError.
func IsExpiredToken(err error) bool {
	var target *ExpiredTokenError
	return errors.As(err, &target)
}

// IsServiceUnavailable reports whether err is a ServiceUnavailableError.
func IsServiceUnavailable(err error) bool {
	var target *ServiceUnavailableError
	return errors.As(err, &target)
}

// IsUnknownEndpoint reports whether err is an UnknownEndpointError.
func IsUnknownEndpoint(err error) bool {
	var target *UnknownEndpointError
	return errors.As(err, &target)
}

// IsFlowProtocol reports whether err is a FlowProtocolError.
func IsFlowProtocol(err error) bool {
	var target *FlowProtocolError
	return errors.As(err, &target)
}

// StatusCodeSuccess is the vendor status code signalling a successful call.
const StatusCodeSuccess = "0"

// statusCodeError maps a recognised vendor failure status code to the typed
// error surfaced for it. Codes observed in the mobile gateway's responses:
// "1" and "2" are credential rejections, "3" and "4" are session expiry
// signals, "5" is a planned-maintenance outage marker.
func statusCodeError(code string) (error, bool) {
	switch code {
	case "1", "2":
		return &InvalidCredentialsError{Detail: fmt.Sprintf("vendor status code %s", code)}, true
	case "3", "4":
		return &ExpiredTokenError{Detail: fmt.Sprintf("vendor status code %s", code)}, true
	case "5":
		return &ServiceUnavailableError{Detail: fmt.Sprintf("vendor status code %s", code)}, true
	default:
		return nil, false
	}
}
