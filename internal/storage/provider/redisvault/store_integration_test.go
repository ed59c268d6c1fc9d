//go:build integration

package redisvault_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veil/internal/platform/config"
	platformredis "veil/internal/platform/redis"
	"veil/internal/storage/provider/redisvault"
	"veil/pkg/platform/sentinel"
	"veil/pkg/testutil/containers"
)

type RedisVaultSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	provider *redisvault.Provider
}

func TestRedisVaultSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisVaultSuite))
}

func (s *RedisVaultSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())

	client, err := platformredis.New(config.RedisConfig{
		URL:          s.redis.Addr,
		PoolSize:     5,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s.Require().NoError(err)
	s.Require().NotNil(client)
	s.provider = redisvault.New(client)
}

func (s *RedisVaultSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisVaultSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "cohort_data:u1", []byte("sealed")))

	got, err := s.provider.RetrieveEncrypted(ctx, "cohort_data:u1")
	s.NoError(err)
	s.Equal([]byte("sealed"), got)
}

func (s *RedisVaultSuite) TestMissingKey() {
	_, err := s.provider.RetrieveEncrypted(context.Background(), "absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisVaultSuite) TestRemove() {
	ctx := context.Background()
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "k", []byte("v")))
	s.Require().NoError(s.provider.RemoveEncrypted(ctx, "k"))

	_, err := s.provider.RetrieveEncrypted(ctx, "k")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisVaultSuite) TestKeysPrefix() {
	ctx := context.Background()
	for _, k := range []string{"api_log_2026_3", "api_log_2026_4", "cohort_data:u1"} {
		s.Require().NoError(s.provider.StoreEncrypted(ctx, k, []byte("v")))
	}

	keys, err := s.provider.Keys(ctx, "api_log_")
	s.NoError(err)
	s.ElementsMatch([]string{"api_log_2026_3", "api_log_2026_4"}, keys)
}

func (s *RedisVaultSuite) TestClearAllStaysNamespaced() {
	ctx := context.Background()
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "k", []byte("v")))

	// A key outside the vault namespace must survive ClearAllEncrypted.
	s.Require().NoError(s.redis.Client.Set(ctx, "unrelated", "kept", 0).Err())

	s.Require().NoError(s.provider.ClearAllEncrypted(ctx))

	keys, err := s.provider.Keys(ctx, "")
	s.NoError(err)
	s.Empty(keys)

	val, err := s.redis.Client.Get(ctx, "unrelated").Result()
	s.NoError(err)
	s.Equal("kept", val)
}
