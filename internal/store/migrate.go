/**
 * @description
 * Applies the embedded SQL migrations in lexical filename order at startup.
 * Each file in `migrations/` runs as a single statement batch; files are
 * written to be idempotent (CREATE TABLE IF NOT EXISTS and the like) so a
 * restart re-applies them harmlessly.
 *
 * @dependencies
 * - embed: compiles the migration files into the binary.
 * - github.com/jackc/pgx/v5/pgxpool: connection pool the migrations run on.
 */

package store

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded SQL migrations in lexical order. Statements are
// written to be re-runnable, so boot-time application is safe.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, "migrations/"+e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := migrationsFS.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("migration %s failed: %w", f, err)
		}
	}
	return nil
}
