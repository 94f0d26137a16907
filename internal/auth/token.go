package auth

import "time"

// TokenState tracks the access/refresh token pair for one authenticator.
// It is mutated only by successful login or refresh operations and read by
// every dispatch. An empty AccessToken means the authenticator is in the
// unauthenticated state and no dispatch other than login may proceed.
type TokenState struct {
	// AccessToken is the bearer or session token attached to calls.
	AccessToken string
	// RefreshToken allows a token-endpoint-only refresh (B2C variant only).
	RefreshToken string
	// IssuedAt is when the current pair was obtained.
	IssuedAt time.Time
	// ExpiresAt is the vendor-declared expiry, zero when the vendor gives
	// no explicit expiry claim (legacy variant).
	ExpiresAt time.Time
}

// Authenticated reports whether an access token is held.
func (t *TokenState) Authenticated() bool { return t.AccessToken != "" }

// Clear drops the access token, forcing a fresh login on the next cycle.
// The refresh token is kept so the B2C variant can still attempt a
// token-endpoint-only recovery.
func (t *TokenState) Clear() { t.AccessToken = "" }
