package sqlitevault

import (
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// cipher seals vault values with ChaCha20-Poly1305. The storage key is bound
// into the AEAD as additional data, so a sealed value copied under another
// key fails to open.
type cipher struct {
	aead stdcipher.AEAD
}

func newCipher(rootKey []byte) (*cipher, error) {
	// Expand the root key into a dedicated data key; the root key itself
	// never touches the AEAD.
	kdf := hkdf.New(sha256.New, rootKey, nil, []byte("veil/sqlitevault/data"))
	dataKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(kdf, dataKey); err != nil {
		return nil, fmt.Errorf("derive data key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &cipher{aead: aead}, nil
}

func (c *cipher) seal(key string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, []byte(key)), nil
}

func (c *cipher) open(key string, sealed []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("sealed value too short")
	}
	return c.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(key))
}
