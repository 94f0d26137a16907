// Package store persists authenticator session snapshots to disk,
// encrypted with AES-256-GCM under a key derived from a passphrase.
package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pantherale0/go-anglianwater/internal/auth"
)

const (
	keySize    = 32
	saltSize   = 16
	pbkdf2Iter = 120_000
)

// ErrNoSnapshot is returned by Load when no snapshot file exists yet.
var ErrNoSnapshot = fmt.Errorf("store: no snapshot")

// SnapshotStore reads and writes encrypted session snapshots at a fixed
// path. The zero value is not usable; construct with NewSnapshotStore.
type SnapshotStore struct {
	path       string
	passphrase []byte
}

// NewSnapshotStore returns a store writing to path, encrypting with a
// key derived from passphrase.
func NewSnapshotStore(path, passphrase string) *SnapshotStore {
	return &SnapshotStore{path: path, passphrase: []byte(passphrase)}
}

// Save serialises the snapshot and writes it encrypted. The file layout
// is salt || nonce || ciphertext. Writes go through a temp file and
// rename so a crash never leaves a truncated snapshot behind.
func (s *SnapshotStore) Save(snap auth.Snapshot) error {
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: failed to encode snapshot: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("store: failed to generate salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("store: failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	if err = os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store: failed to create snapshot directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("store: failed to write snapshot: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("store: failed to replace snapshot: %w", err)
	}
	return nil
}

// Load reads and decrypts the snapshot. A wrong passphrase surfaces as a
// decryption failure, not as garbage data, because GCM authenticates the
// ciphertext.
func (s *SnapshotStore) Load() (auth.Snapshot, error) {
	var snap auth.Snapshot

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("store: failed to read snapshot: %w", err)
	}
	if len(data) < saltSize {
		return snap, fmt.Errorf("store: snapshot file too short")
	}

	salt := data[:saltSize]
	gcm, err := s.aead(salt)
	if err != nil {
		return snap, err
	}
	rest := data[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return snap, fmt.Errorf("store: snapshot file too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return snap, fmt.Errorf("store: failed to decrypt snapshot (wrong passphrase?): %w", err)
	}
	if err = json.Unmarshal(plaintext, &snap); err != nil {
		return snap, fmt.Errorf("store: failed to decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, pbkdf2Iter, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("store: failed to initialise cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("store: failed to initialise gcm: %w", err)
	}
	return gcm, nil
}
