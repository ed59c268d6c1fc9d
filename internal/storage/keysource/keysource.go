// Package keysource supplies root encryption keys to encrypting providers.
// Keys live outside the vault on purpose: retrieving one is a separate call
// against separate storage, so a copied vault file alone is useless.
package keysource

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// RootKeySize is the required root key length in bytes.
const RootKeySize = 32

// File reads a hex-encoded root key from a file outside the vault (an OS
// keychain bridge can point this at its own export). A missing file is
// populated with a fresh random key on first use.
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) RootKey(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return f.generate()
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	if len(key) != RootKeySize {
		return nil, fmt.Errorf("key file holds %d bytes, want %d", len(key), RootKeySize)
	}
	return key, nil
}

func (f *File) generate() ([]byte, error) {
	key := make([]byte, RootKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate root key: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return key, nil
}

// Static wraps a key already held in memory, for tests and callers that do
// their own key management.
type Static struct {
	Key []byte
}

func (s Static) RootKey(_ context.Context) ([]byte, error) {
	if len(s.Key) != RootKeySize {
		return nil, fmt.Errorf("static key holds %d bytes, want %d", len(s.Key), RootKeySize)
	}
	return s.Key, nil
}
