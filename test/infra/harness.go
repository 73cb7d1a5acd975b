package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// ErrNoDatabase is returned by NewHarness when no DSN was given, Docker is not usable
// and no local PostgreSQL accepted an admin connection.
var ErrNoDatabase = errors.New("infra: no database available")

const (
	scratchRole     = "rentflow"
	scratchPassword = "rentflow"
	scratchDatabase = "rentflow_stress"
	localAddr       = "127.0.0.1:5432"
)

// Harness owns a migrated database for one test run.
type Harness struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	cleanup   func(context.Context) error
}

// NewHarness returns a migrated database. Sources are tried in order: overrideDSN,
// STRESS_TEST_PG_DSN, a Postgres 16 container, then a scratch database on a local
// server. Shared databases get an isolated schema that Close drops.
func NewHarness(ctx context.Context, overrideDSN string) (*Harness, error) {
	h := &Harness{}

	dsn, shared := overrideDSN, true
	if dsn == "" {
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
	}
	if dsn == "" {
		shared = false
		var err error
		if dsn, err = h.provision(ctx); err != nil {
			return nil, err
		}
	}

	pool, cleanup, err := ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		h.terminate(ctx)
		return nil, err
	}
	h.pool = pool
	h.cleanup = cleanup
	return h, nil
}

func (h *Harness) provision(ctx context.Context) (string, error) {
	if !dockerAvailable(ctx) {
		dsn, err := createScratchDatabase(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoDatabase, err)
		}
		return dsn, nil
	}

	c, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("rentflow"),
		postgres.WithUsername(scratchRole),
		postgres.WithPassword(scratchPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", fmt.Errorf("infra: start postgres container: %w", err)
	}
	h.container = c

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		h.terminate(ctx)
		return "", fmt.Errorf("infra: container dsn: %w", err)
	}
	return dsn, nil
}

// Pool exposes the migrated pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// Close drops the isolated schema, if any, and stops the container.
func (h *Harness) Close(ctx context.Context) error {
	if h.pool != nil {
		h.pool.Close()
	}
	var err error
	if h.cleanup != nil {
		err = h.cleanup(ctx)
	}
	h.terminate(ctx)
	return err
}

func (h *Harness) terminate(ctx context.Context) {
	if h.container != nil {
		_ = h.container.Terminate(ctx)
		h.container = nil
	}
}

// OpenTestDB returns a migrated pool in an isolated schema of DATABASE_URL, skipping the test
// when DATABASE_URL is unset.
func OpenTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, cleanup, err := ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := cleanup(ctx); err != nil {
			t.Logf("drop test schema: %v", err)
		}
	})
	return pool
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

// createScratchDatabase recreates rentflow_stress on the local server, owned by the
// rentflow role, and returns its DSN.
func createScratchDatabase(ctx context.Context) (string, error) {
	if err := exec.CommandContext(ctx, "pg_isready", "-h", "127.0.0.1", "-p", "5432").Run(); err != nil {
		return "", fmt.Errorf("local postgres not ready: %w", err)
	}

	admin, err := connectAdmin(ctx)
	if err != nil {
		return "", err
	}
	defer admin.Close(ctx)

	role := pgx.Identifier{scratchRole}.Sanitize()
	database := pgx.Identifier{scratchDatabase}.Sanitize()
	stmts := []string{
		fmt.Sprintf(`DO $$ BEGIN CREATE ROLE %s WITH LOGIN PASSWORD '%s'; EXCEPTION WHEN duplicate_object THEN NULL; END $$`, role, scratchPassword),
		fmt.Sprintf(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = '%s' AND pid <> pg_backend_pid()`, scratchDatabase),
		fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, database),
		fmt.Sprintf(`CREATE DATABASE %s OWNER %s`, database, role),
	}
	for _, stmt := range stmts {
		if _, err := admin.Exec(ctx, stmt); err != nil {
			return "", fmt.Errorf("infra: prepare scratch database: %w", err)
		}
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", scratchRole, scratchPassword, localAddr, scratchDatabase), nil
}

func connectAdmin(ctx context.Context) (*pgx.Conn, error) {
	var lastErr error
	for _, user := range []string{"postgres", os.Getenv("USER")} {
		if user == "" {
			continue
		}
		for _, auth := range []string{user, user + ":postgres"} {
			conn, err := pgx.Connect(ctx, fmt.Sprintf("postgres://%s@%s/postgres?sslmode=disable", auth, localAddr))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("infra: connect as admin: %w", lastErr)
}
