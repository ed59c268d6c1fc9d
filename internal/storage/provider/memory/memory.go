// Package memory provides an in-memory SecureStorageProvider. It keeps unit
// tests and single-process embedding lightweight; values are held as opaque
// byte slices exactly as an encrypting provider would persist them.
package memory

import (
	"context"
	"strings"
	"sync"

	"veil/pkg/platform/sentinel"
)

type Provider struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func New() *Provider {
	return &Provider{values: make(map[string][]byte)}
}

func (p *Provider) StoreEncrypted(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	p.values[key] = buf
	return nil
}

func (p *Provider) RetrieveEncrypted(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.values[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, nil
}

func (p *Provider) RemoveEncrypted(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.values, key)
	return nil
}

func (p *Provider) ClearAllEncrypted(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = make(map[string][]byte)
	return nil
}

func (p *Provider) Keys(_ context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var keys []string
	for k := range p.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
