package msob2c

import "fmt"

// ProtocolError reports that the vendor's page or redirect structure did
// not match what the flow expects: a missing SETTINGS block, CSRF token,
// redirect Location or authorization code. It is fatal for the attempt and
// usually means the vendor changed its login page layout.
type ProtocolError struct {
	// State names the flow state in which the violation was observed.
	State State
	// Detail describes the missing or malformed artifact.
	Detail string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a string representation of the protocol violation.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("b2c flow %s: %s (caused by: %v)", e.State, e.Detail, e.Cause)
	}
	return fmt.Sprintf("b2c flow %s: %s", e.State, e.Detail)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *ProtocolError) Unwrap() error { return e.Cause }

// CredentialsError reports that the self-asserted step rejected the
// identity or secret. The flow halts here for bad passwords.
type CredentialsError struct {
	// Status is the vendor's status value from the rejection response.
	Status string
}

// Error returns a string representation of the rejection.
func (e *CredentialsError) Error() string {
	return fmt.Sprintf("b2c flow: credentials rejected (status %s)", e.Status)
}
