// Package pgtest spins up a throwaway Postgres for repository tests.
package pgtest

import (
	"context"
	"fmt"
	"os"

	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Start returns a DSN for a fresh Postgres 16 container and a terminate
// func. Setting VISITS_TEST_PG_DSN reuses an existing database instead,
// which avoids Docker entirely (terminate is then a no-op).
func Start(ctx context.Context) (dsn string, terminate func(), err error) {
	if dsn := os.Getenv("VISITS_TEST_PG_DSN"); dsn != "" {
		return dsn, func() {}, nil
	}

	// testcontainers panics (rather than returning an error) when no
	// Docker host can be found; surface that as the error callers
	// already handle so tests can skip.
	defer func() {
		if r := recover(); r != nil {
			dsn, terminate = "", nil
			err = fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("visits_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, err
	}

	dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return "", nil, err
	}
	return dsn, func() { _ = pgC.Terminate(ctx) }, nil
}
