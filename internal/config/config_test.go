package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
username: user@example.com
password: secret
account-id: "0123456789"
area: Anglian
tariff: standard
bridge-port: 9000
debug: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Username != "user@example.com" || cfg.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.Username, cfg.Password)
	}
	if cfg.AuthMethod != AuthMethodB2C {
		t.Errorf("AuthMethod = %q, want the b2c default", cfg.AuthMethod)
	}
	if cfg.BridgePort != 9000 || !cfg.Debug {
		t.Errorf("BridgePort = %d Debug = %v", cfg.BridgePort, cfg.Debug)
	}
	if cfg.UpdateIntervalSeconds != 900 {
		t.Errorf("UpdateIntervalSeconds = %d, want the 900 default", cfg.UpdateIntervalSeconds)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
username: file-user@example.com
password: file-secret
account-id: "111"
`)
	t.Setenv("AW_USERNAME", "env-user@example.com")
	t.Setenv("AW_ACCOUNT_ID", "222")
	t.Setenv("AW_REFRESH_TOKEN", "rt-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Username != "env-user@example.com" {
		t.Errorf("Username = %q, want the environment value", cfg.Username)
	}
	if cfg.AccountID != "222" {
		t.Errorf("AccountID = %q, want the environment value", cfg.AccountID)
	}
	if cfg.Password != "file-secret" {
		t.Errorf("Password = %q, want the file value to survive", cfg.Password)
	}
	if cfg.RefreshToken != "rt-env" {
		t.Errorf("RefreshToken = %q", cfg.RefreshToken)
	}
}

func TestEnvOnlyConfiguration(t *testing.T) {
	t.Setenv("AW_USERNAME", "user@example.com")
	t.Setenv("AW_PASSWORD", "secret")
	t.Setenv("AW_AUTH_METHOD", "legacy")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuthMethod != AuthMethodLegacy {
		t.Errorf("AuthMethod = %q", cfg.AuthMethod)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing credentials", "area: Anglian\n"},
		{"b2c without account id", "username: u\npassword: p\n"},
		{"unknown auth method", "username: u\npassword: p\nauth-method: carrier-pigeon\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Fatal("Load() should have failed validation")
			}
		})
	}
}

func TestLegacyNeedsNoAccountID(t *testing.T) {
	path := writeConfig(t, `
username: user@example.com
password: secret
auth-method: legacy
`)
	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "username: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject malformed YAML")
	}
}
