package connection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

// SqlTargetConnection is the real TargetConnection, backed by
// database/sql. Dialect-specific statements (CONTEXT_INFO, SYSUTCDATETIME,
// MERGE) target SQL Server / Azure SQL Database; the local smoke-test
// harness substitutes equivalents for the bundled ncruces/go-sqlite3
// driver (see Dialect).
type SqlTargetConnection struct {
	DriverName string
	DataSource string
	Dialect    Dialect

	db     *sql.DB
	logger Logger
}

// Dialect isolates the handful of statements that differ between SQL
// Server and the local sqlite smoke-test backend, so SqlTargetConnection
// itself stays backend-agnostic.
type Dialect interface {
	EnsureMigrationSupportSQL() []string
	MarkAppliedThroughSQL(migrationName string, phase migration.Phase) string
	SelectAppliedMigrationsSQL(earliestName string) string
	PrepareSessionSQL(runID uuid.UUID, workerID int) []string
}

// NewSqlTargetConnection constructs a connection that will dial driverName
// (e.g. "sqlserver", or "sqlite3" for local smoke tests) with dataSource
// once Open is called.
func NewSqlTargetConnection(driverName, dataSource string, dialect Dialect) *SqlTargetConnection {
	return &SqlTargetConnection{DriverName: driverName, DataSource: dataSource, Dialect: dialect}
}

func (c *SqlTargetConnection) SetLogger(logger Logger) { c.logger = logger }

func (c *SqlTargetConnection) Open(ctx context.Context) error {
	db, err := sql.Open(c.DriverName, c.DataSource)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("open connection: %w", err)
	}
	c.db = db
	return nil
}

func (c *SqlTargetConnection) Prepare(ctx context.Context, runID uuid.UUID, workerID int) error {
	for _, stmt := range c.Dialect.PrepareSessionSQL(runID, workerID) {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare session: %w", err)
		}
	}
	return nil
}

func (c *SqlTargetConnection) InitializeMigrationSupport(ctx context.Context) error {
	for _, stmt := range c.Dialect.EnsureMigrationSupportSQL() {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize migration support: %w", err)
		}
	}
	return nil
}

func (c *SqlTargetConnection) GetAppliedMigrations(ctx context.Context, earliestName string) (map[string]plan.AppliedMigration, error) {
	rows, err := c.db.QueryContext(ctx, c.Dialect.SelectAppliedMigrationsSQL(earliestName))
	if err != nil {
		return nil, fmt.Errorf("get applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[string]plan.AppliedMigration)
	for rows.Next() {
		var name, hash sql.NullString
		var pre, core, post sql.NullBool
		if err := rows.Scan(&name, &hash, &pre, &core, &post); err != nil {
			return nil, fmt.Errorf("get applied migrations: %w", err)
		}
		result[name.String] = plan.AppliedMigration{
			Name:        name.String,
			Hash:        hash.String,
			PreApplied:  pre.Bool,
			CoreApplied: core.Bool,
			PostApplied: post.Bool,
		}
	}
	return result, rows.Err()
}

func (c *SqlTargetConnection) ExecuteMigrationContent(ctx context.Context, migrationName string, phase migration.Phase, sqlText string) error {
	if strings.TrimSpace(sqlText) != "" {
		if err := c.execBatches(ctx, sqlText); err != nil {
			return err
		}
	}
	return nil
}

func (c *SqlTargetConnection) MarkMigrationApplied(ctx context.Context, migrationName string, phase migration.Phase) error {
	stmt := c.Dialect.MarkAppliedThroughSQL(migrationName, phase)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mark migration %q applied through %s: %w", migrationName, phase, err)
	}
	return nil
}

func (c *SqlTargetConnection) ExecuteSeedBatch(ctx context.Context, sqlText string) error {
	return c.execBatches(ctx, sqlText)
}

// execBatches splits on standalone "GO" lines and executes each batch
// separately, since a single database/sql Exec call cannot run a
// GO-separated batch stream. Migration content needs this split: the
// loader joins a phase's preprocessed batches back together with "GO"
// lines.
func (c *SqlTargetConnection) execBatches(ctx context.Context, sqlText string) error {
	for _, batch := range splitBatches(sqlText) {
		if strings.TrimSpace(batch) == "" {
			continue
		}
		if _, err := c.db.ExecContext(ctx, batch); err != nil {
			return fmt.Errorf("execute batch: %w", err)
		}
	}
	return nil
}

func splitBatches(sqlText string) []string {
	lines := strings.Split(sqlText, "\n")
	var batches []string
	var current []string
	for _, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), "GO") {
			batches = append(batches, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		batches = append(batches, strings.Join(current, "\n"))
	}
	return batches
}

func (c *SqlTargetConnection) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
