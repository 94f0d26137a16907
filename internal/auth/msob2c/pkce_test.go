package msob2c

import "testing"

func TestNewMaterial(t *testing.T) {
	t.Parallel()

	m, err := NewMaterial()
	if err != nil {
		t.Fatalf("NewMaterial() error = %v", err)
	}
	if len(m.Verifier) != 128 {
		t.Errorf("verifier length = %d, want 128", len(m.Verifier))
	}
	if len(m.State) != 32 {
		t.Errorf("state nonce length = %d, want 32 hex chars", len(m.State))
	}
	if m.Challenge != DeriveChallenge(m.Verifier) {
		t.Error("challenge does not match its verifier")
	}
	for _, r := range m.Verifier {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			t.Fatalf("verifier contains non-URL-safe character %q", r)
		}
	}
}

func TestNewMaterialUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		m, err := NewMaterial()
		if err != nil {
			t.Fatalf("NewMaterial() error = %v", err)
		}
		if seen[m.Verifier] {
			t.Fatal("duplicate verifier generated")
		}
		seen[m.Verifier] = true
	}
}

func TestDeriveChallenge(t *testing.T) {
	t.Parallel()

	// RFC 7636 appendix B test vector.
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const want = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := DeriveChallenge(verifier); got != want {
		t.Errorf("DeriveChallenge() = %q, want %q", got, want)
	}

	if DeriveChallenge(verifier) != DeriveChallenge(verifier) {
		t.Error("DeriveChallenge must be deterministic")
	}
}
