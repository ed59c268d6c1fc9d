package storage

import "context"

//go:generate mockgen -destination=../../mocks/storage/provider_mock.go -package=storagemock veil/internal/storage SecureStorageProvider

// SecureStorageProvider is the pluggable encrypted persistence backend. The
// engine is agnostic to the encryption algorithm, key management, and the
// physical medium behind it.
//
// Implementations return sentinel.ErrNotFound when a key is absent; the vault
// translates provider faults into coded domain errors.
type SecureStorageProvider interface {
	StoreEncrypted(ctx context.Context, key string, value []byte) error
	RetrieveEncrypted(ctx context.Context, key string) ([]byte, error)
	RemoveEncrypted(ctx context.Context, key string) error
	ClearAllEncrypted(ctx context.Context) error

	// Keys lists stored keys with the given prefix. The cleanup job and
	// scoped deletion use it to enumerate per-user and bucketed records.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// KeySource supplies the root encryption key to encrypting providers. Key
// retrieval is deliberately a separate call against separate storage; keys
// are never co-located with the data they protect.
type KeySource interface {
	RootKey(ctx context.Context) ([]byte, error)
}
