package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/intervue/internal/store"
	"github.com/MrWong99/intervue/internal/store/postgres"
	"github.com/MrWong99/intervue/internal/store/storetest"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if INTERVUE_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("INTERVUE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("INTERVUE_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// dropSchema removes all tables created by Migrate.
func dropSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS interview_results CASCADE",
		"DROP TABLE IF EXISTS interview_sessions CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func openStore(t *testing.T) store.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()
	dropSchema(t, ctx, dsn)

	s, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	testDSN(t)
	storetest.Run(t, openStore)
}

func TestMigrate_Idempotent(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()
	dropSchema(t, ctx, dsn)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()
	for i := range 2 {
		if err := postgres.Migrate(ctx, pool); err != nil {
			t.Fatalf("Migrate() run %d error: %v", i+1, err)
		}
	}
}

func TestNew_BadDSN(t *testing.T) {
	t.Parallel()
	if _, err := postgres.New(context.Background(), "://not a dsn"); err == nil {
		t.Error("New() with malformed DSN returned nil error")
	}
}
