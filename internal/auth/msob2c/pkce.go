// Package msob2c drives the Azure AD B2C browser-emulation login flow used
// by the Anglian Water app: the four-step authorize, self-asserted,
// confirm-redirect and token-exchange choreography, including the PKCE
// material and CSRF scraping it requires.
package msob2c

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Material is the per-login-attempt PKCE verifier/challenge pair plus the
// state nonce carried through the flow. It is regenerated for every
// attempt and never persisted.
type Material struct {
	// Verifier is the RFC 7636 code verifier, 43-128 URL-safe characters.
	Verifier string
	// Challenge is the S256-derived code challenge.
	Challenge string
	// State is the random nonce binding the redirect back to this attempt.
	State string
}

// NewMaterial generates fresh PKCE material following RFC 7636. The
// verifier is derived from 96 random bytes, yielding 128 base64url
// characters; the challenge is the base64url-encoded SHA256 of the
// verifier.
func NewMaterial() (*Material, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	state, err := generateStateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state nonce: %w", err)
	}
	return &Material{
		Verifier:  verifier,
		Challenge: DeriveChallenge(verifier),
		State:     state,
	}, nil
}

// DeriveChallenge computes the S256 code challenge for a verifier. It is a
// pure function: the same verifier always yields the same challenge.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}

func generateCodeVerifier() (string, error) {
	bytes := make([]byte, 96)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes), nil
}

func generateStateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
