package auth

import (
	"strings"

	"github.com/google/uuid"
)

// Credential holds the identity material owned by a single authenticator
// instance. It is immutable after construction except for the device or
// session identifier, which rotates when the vendor issues a replacement.
type Credential struct {
	// Username is the account email address.
	Username string
	// Password is the account secret.
	Password string
	// DeviceID binds the credential to a registered device (legacy variant)
	// or browser session. Empty means no device has been registered yet.
	DeviceID string
	// AccountID is the vendor account number, learned at login for the
	// legacy variant and supplied by the caller for the B2C variant.
	AccountID string
}

// EnsureDeviceID returns the credential's device id, generating and
// retaining a fresh one when none was supplied. The second return value
// reports whether a new id was generated; callers should surface generated
// ids so the session can be resumed later.
func (c *Credential) EnsureDeviceID() (string, bool) {
	if strings.TrimSpace(c.DeviceID) != "" {
		return c.DeviceID, false
	}
	c.DeviceID = strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return c.DeviceID, true
}
