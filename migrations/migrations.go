// Package migrations applies the embedded database schema at startup.
package migrations

import (
	"context"
	_ "embed"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Apply creates all tables and indexes if they do not exist yet. The schema
// only uses IF NOT EXISTS statements, so running it repeatedly is safe.
// Statements run one at a time because the extended protocol does not accept
// multi-statement strings.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
