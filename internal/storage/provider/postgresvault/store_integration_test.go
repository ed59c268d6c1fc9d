//go:build integration

package postgresvault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"veil/internal/storage/provider/postgresvault"
	"veil/pkg/platform/sentinel"
	"veil/pkg/testutil/containers"
)

type PostgresVaultSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	provider *postgresvault.Provider
}

func TestPostgresVaultSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresVaultSuite))
}

func (s *PostgresVaultSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	var err error
	s.provider, err = postgresvault.Open(s.postgres.DSN)
	s.Require().NoError(err)
}

func (s *PostgresVaultSuite) SetupTest() {
	s.Require().NoError(s.provider.ClearAllEncrypted(context.Background()))
}

func (s *PostgresVaultSuite) TestRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "cohort_data:u1", []byte("sealed")))

	got, err := s.provider.RetrieveEncrypted(ctx, "cohort_data:u1")
	s.NoError(err)
	s.Equal([]byte("sealed"), got)
}

func (s *PostgresVaultSuite) TestUpsert() {
	ctx := context.Background()
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "k", []byte("v1")))
	s.Require().NoError(s.provider.StoreEncrypted(ctx, "k", []byte("v2")))

	got, err := s.provider.RetrieveEncrypted(ctx, "k")
	s.NoError(err)
	s.Equal([]byte("v2"), got)
}

func (s *PostgresVaultSuite) TestMissingKey() {
	_, err := s.provider.RetrieveEncrypted(context.Background(), "absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresVaultSuite) TestKeysPrefixTreatsUnderscoreLiterally() {
	ctx := context.Background()
	for _, k := range []string{"api_log_2026_3", "apiXlogX2026", "cohort_data:u1"} {
		s.Require().NoError(s.provider.StoreEncrypted(ctx, k, []byte("v")))
	}

	keys, err := s.provider.Keys(ctx, "api_log_")
	s.NoError(err)
	s.ElementsMatch([]string{"api_log_2026_3"}, keys)
}
