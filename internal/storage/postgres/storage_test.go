package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mcoot/blazers/internal/storage"
	"github.com/mcoot/blazers/internal/storage/storagetest"
	"github.com/mcoot/blazers/internal/testutil"
)

type StorageSuite struct {
	storagetest.Suite
}

func TestStorageSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("blazers"),
		tcpostgres.WithUsername("blazers"),
		tcpostgres.WithPassword("blazers"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.URL = dsn
	store, err := New(ctx, cfg, testutil.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	s := new(StorageSuite)
	s.New = func() storage.Storage { return store }
	suite.Run(t, s)
}

func (s *StorageSuite) TestMigrateIsIdempotent() {
	pg := s.Storage.(*Storage)
	s.NoError(Migrate(pg.pool.Config().ConnString(), testutil.NopLogger()))
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	require.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	require.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}
