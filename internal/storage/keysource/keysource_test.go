package keysource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_GeneratesKeyOnFirstUse(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.key")
	src := NewFile(path)

	key, err := src.RootKey(ctx)
	require.NoError(t, err)
	assert.Len(t, key, RootKeySize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Subsequent reads return the same key
	again, err := src.RootKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestFile_RejectsMalformedKeyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.key")

	require.NoError(t, os.WriteFile(path, []byte("not-hex"), 0o600))
	_, err := NewFile(path).RootKey(ctx)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("abcd"), 0o600))
	_, err = NewFile(path).RootKey(ctx)
	assert.Error(t, err, "short keys rejected")
}

func TestStatic_EnforcesKeySize(t *testing.T) {
	ctx := context.Background()

	_, err := Static{Key: []byte("short")}.RootKey(ctx)
	assert.Error(t, err)

	key := make([]byte, RootKeySize)
	got, err := Static{Key: key}.RootKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}
