//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mark-rom/egrul-bot/internal/platform/database"
)

const postgresImage = "postgres:18-alpine"

// requestLogTables lists the request log tables, children first.
var requestLogTables = []string{"requests", "companies", "users"}

// PostgresContainer is a Postgres instance carrying the request log schema.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres and migrates it with the same embedded
// migrations `egrulctl migrate` applies.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	pg, err := startPostgres(context.Background())
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	return pg
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("egrul_test"),
		postgres.WithUsername("egrul"),
		postgres.WithPassword("egrul_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	pg, err := connectPostgres(ctx, container)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return pg, nil
}

func connectPostgres(ctx context.Context, container *postgres.PostgresContainer) (*PostgresContainer, error) {
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	if err := database.Migrate(dsn, nil); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return &PostgresContainer{Container: container, DSN: dsn, DB: db}, nil
}

// TruncateRequestLog empties the request log between tests.
func (p *PostgresContainer) TruncateRequestLog(ctx context.Context) error {
	stmt := "TRUNCATE TABLE " + strings.Join(requestLogTables, ", ") + " CASCADE"
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate request log: %w", err)
	}
	return nil
}
