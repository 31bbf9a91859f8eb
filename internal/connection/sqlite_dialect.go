package connection

import (
	"fmt"

	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3" with database/sql
	_ "github.com/ncruces/go-sqlite3/embed"  // bundles the sqlite3 WASM binary

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

// SqliteDialect substitutes SQL Server-specific statements with sqlite
// equivalents for the CLI's local smoke-test mode and for engine unit
// tests that want real SQL execution without a network dependency
// (SPEC_FULL.md DOMAIN STACK; spec.md §1 treats the real SQL client as an
// abstract external collaborator, so this module owns no SQL Server
// driver of its own).
type SqliteDialect struct{}

func (SqliteDialect) EnsureMigrationSupportSQL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS migration (
			name TEXT PRIMARY KEY,
			hash TEXT,
			pre_run_date TEXT,
			core_run_date TEXT,
			post_run_date TEXT
		)`,
	}
}

func (SqliteDialect) MarkAppliedThroughSQL(migrationName string, phase migration.Phase) string {
	column := map[migration.Phase]string{
		migration.Pre:  "pre_run_date",
		migration.Core: "core_run_date",
		migration.Post: "post_run_date",
	}[phase]

	return fmt.Sprintf(`
		INSERT INTO migration (name, %s) VALUES ('%s', CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET %s = CURRENT_TIMESTAMP
	`, column, escapeLiteral(migrationName), column)
}

func (SqliteDialect) SelectAppliedMigrationsSQL(earliestName string) string {
	if earliestName == "" {
		return `SELECT name, hash, pre_run_date IS NOT NULL, core_run_date IS NOT NULL, post_run_date IS NOT NULL FROM migration`
	}
	return fmt.Sprintf(
		`SELECT name, hash, pre_run_date IS NOT NULL, core_run_date IS NOT NULL, post_run_date IS NOT NULL FROM migration WHERE name >= '%s'`,
		escapeLiteral(earliestName),
	)
}

func (SqliteDialect) PrepareSessionSQL(runID uuid.UUID, workerID int) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS session_context (key TEXT PRIMARY KEY, value TEXT)`),
		fmt.Sprintf(`INSERT INTO session_context (key, value) VALUES ('RunId', '%s')
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, runID.String()),
		fmt.Sprintf(`INSERT INTO session_context (key, value) VALUES ('WorkerId', '%d')
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, workerID),
	}
}
