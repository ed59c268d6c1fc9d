// Package redisvault persists vault records in Redis. Intended for
// deployments that already run a local Redis and want shared storage across
// engine restarts without a vault file.
package redisvault

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	platformredis "veil/internal/platform/redis"
	"veil/pkg/platform/sentinel"
)

// namespace prefixes every vault key so FlushAll-style clears stay scoped to
// engine data.
const namespace = "veil:vault:"

type Provider struct {
	client *platformredis.Client
}

func New(client *platformredis.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) StoreEncrypted(ctx context.Context, key string, value []byte) error {
	if err := p.client.Set(ctx, namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (p *Provider) RetrieveEncrypted(ctx context.Context, key string) ([]byte, error) {
	value, err := p.client.Get(ctx, namespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", key, err)
	}
	return value, nil
}

func (p *Provider) RemoveEncrypted(ctx context.Context, key string) error {
	if err := p.client.Del(ctx, namespace+key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (p *Provider) ClearAllEncrypted(ctx context.Context) error {
	keys, err := p.scan(ctx, namespace+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear vault: %w", err)
	}
	return nil
}

func (p *Provider) Keys(ctx context.Context, prefix string) ([]string, error) {
	raw, err := p.scan(ctx, namespace+prefix+"*")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, k[len(namespace):])
	}
	return keys, nil
}

func (p *Provider) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := p.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	return keys, nil
}
