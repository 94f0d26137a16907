package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pantherale0/go-anglianwater/internal/config"
)

const baseConfig = `
username: user@example.com
password: secret
auth-method: legacy
`

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *config.Config, 1)
	w, err := NewWatcher(path, func(cfg *config.Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err = os.WriteFile(path, []byte(baseConfig+"debug: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if !cfg.Debug {
			t.Error("reloaded config missing the change")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcherIgnoresUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *config.Config, 4)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Rewriting identical content must not trigger a reload.
	if err = os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("reload fired for unchanged content")
	case <-time.After(time.Second):
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *config.Config, 1)
	w, err := NewWatcher(path, func(cfg *config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err = w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// A config failing validation is logged and skipped.
	if err = os.WriteFile(path, []byte("username: only\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("reload fired for an invalid config")
	case <-time.After(time.Second):
	}
}
