// Package connection defines the target connection contract (spec.md
// §4.7): the narrow set of operations the migration and seed applicators
// need from a database connection, plus the real (database/sql-backed)
// and what-if implementations.
//
// The SQL client library itself and connection-string construction are
// explicitly out of scope (spec.md §1); this package only ever talks to
// whatever *sql.DB a caller hands it, which in production is opened
// against SQL Server / Azure SQL Database by code outside this module,
// and in tests and the CLI's local smoke-test mode is opened against the
// bundled ncruces/go-sqlite3 driver (SPEC_FULL.md's DOMAIN STACK).
package connection

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

// escapeLiteral doubles single quotes for safe interpolation into a T-SQL
// or sqlite string literal. Statements built by this package only ever
// interpolate migration/seed names the engine itself discovered from the
// filesystem, never end-user input, so literal escaping (not parameter
// binding) is sufficient here.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// MaxInformationalSeverity is the SQL message severity at or below which a
// message is rendered as just its text; above it, messages get the
// structured "proc:line: E<number>:<severity>: <message>" prefix
// (spec.md §4.7).
const MaxInformationalSeverity = 10

// Message is one SQL diagnostic message captured while executing a batch
// (spec.md §4.7).
type Message struct {
	Procedure string
	Line      int
	Number    int
	Severity  int
	Text      string
}

// Render formats the message the way the Logger surface expects it to
// appear in a log file.
func (m Message) Render() string {
	if m.Severity <= MaxInformationalSeverity {
		return m.Text
	}
	return renderStructured(m)
}

// Logger receives SQL messages surfaced while a batch executes.
type Logger interface {
	Message(m Message)
}

// LoggerFunc adapts a function to a Logger.
type LoggerFunc func(Message)

func (f LoggerFunc) Message(m Message) { f(m) }

// TargetConnection is the full contract spec.md §4.7 describes.
type TargetConnection interface {
	Open(ctx context.Context) error

	// Prepare assigns CONTEXT_INFO and SESSION_CONTEXT for a seed apply
	// (spec.md §4.6 step 5, §6.2).
	Prepare(ctx context.Context, runID uuid.UUID, workerID int) error

	// InitializeMigrationSupport idempotently ensures the migration
	// support schema exists (spec.md §4.4, §6.2).
	InitializeMigrationSupport(ctx context.Context) error

	// GetAppliedMigrations fetches applied-migration rows, optionally
	// starting from earliestName (spec.md §4.7). An empty earliestName
	// fetches all rows.
	GetAppliedMigrations(ctx context.Context, earliestName string) (map[string]plan.AppliedMigration, error)

	ExecuteMigrationContent(ctx context.Context, migrationName string, phase migration.Phase, sql string) error

	// MarkMigrationApplied executes the synthetic tail batch that records
	// a migration as applied through phase, inserting its row if absent
	// (spec.md §4.4, §6.2).
	MarkMigrationApplied(ctx context.Context, migrationName string, phase migration.Phase) error

	ExecuteSeedBatch(ctx context.Context, sql string) error

	Close() error

	// SetLogger attaches a Logger that receives SQL messages surfaced
	// while batches execute.
	SetLogger(logger Logger)
}

func renderStructured(m Message) string {
	proc := m.Procedure
	if proc == "" {
		proc = "<batch>"
	}
	return fmt.Sprintf("%s:%d: E%d:%d: %s", proc, m.Line, m.Number, m.Severity, m.Text)
}
