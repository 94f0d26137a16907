package auth

import "testing"

func TestEnsureDeviceID(t *testing.T) {
	t.Parallel()

	t.Run("generates when empty", func(t *testing.T) {
		t.Parallel()
		c := &Credential{Username: "user@example.com"}
		id, generated := c.EnsureDeviceID()
		if !generated {
			t.Fatal("EnsureDeviceID() should report generation for an empty id")
		}
		if len(id) != 16 {
			t.Errorf("generated id length = %d, want 16", len(id))
		}
		if c.DeviceID != id {
			t.Errorf("credential not updated: %q vs %q", c.DeviceID, id)
		}
	})

	t.Run("keeps supplied id", func(t *testing.T) {
		t.Parallel()
		c := &Credential{DeviceID: "device9876543210"}
		id, generated := c.EnsureDeviceID()
		if generated {
			t.Fatal("EnsureDeviceID() must not replace a supplied id")
		}
		if id != "device9876543210" {
			t.Errorf("id = %q, want the supplied value", id)
		}
	})

	t.Run("unique across credentials", func(t *testing.T) {
		t.Parallel()
		seen := map[string]bool{}
		for i := 0; i < 32; i++ {
			c := &Credential{}
			id, _ := c.EnsureDeviceID()
			if seen[id] {
				t.Fatalf("duplicate device id %q", id)
			}
			seen[id] = true
		}
	})
}

func TestTokenState(t *testing.T) {
	t.Parallel()

	tok := TokenState{}
	if tok.Authenticated() {
		t.Error("zero TokenState must be unauthenticated")
	}

	tok.AccessToken = "abc"
	tok.RefreshToken = "def"
	if !tok.Authenticated() {
		t.Error("TokenState with access token must be authenticated")
	}

	tok.Clear()
	if tok.Authenticated() {
		t.Error("cleared TokenState must be unauthenticated")
	}
	if tok.RefreshToken != "def" {
		t.Error("Clear() must preserve the refresh token")
	}
}
