package migrations

import (
	"context"
	"fmt"
	"strings"

	"breakout-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded PostgreSQL files in order.
// Every statement uses IF NOT EXISTS, so reruns are harmless.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, m := range files {
		if strings.TrimSpace(m.sql) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
