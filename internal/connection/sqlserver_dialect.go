package connection

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

// SqlServerDialect renders the migration-support schema and session
// preparation statements against SQL Server / Azure SQL Database
// (spec.md §6.2). It does not import a SQL Server driver itself — the
// driver registration is the CLI front-end's job (spec.md §1 treats the
// SQL client library as an external collaborator); this type only
// produces T-SQL text for whatever driver the caller registered under
// SqlTargetConnection.DriverName (e.g. "sqlserver").
type SqlServerDialect struct{}

func (SqlServerDialect) EnsureMigrationSupportSQL() []string {
	return []string{
		`IF SCHEMA_ID('Migrations') IS NULL EXEC('CREATE SCHEMA Migrations')`,
		`IF OBJECT_ID('Migrations.Migration') IS NULL
			CREATE TABLE Migrations.Migration (
				Name          sysname      NOT NULL PRIMARY KEY,
				Hash          varchar(64)  NULL,
				PreRunDate    datetime2    NULL,
				CoreRunDate   datetime2    NULL,
				PostRunDate   datetime2    NULL
			)`,
	}
}

func (SqlServerDialect) MarkAppliedThroughSQL(migrationName string, phase migration.Phase) string {
	column := map[migration.Phase]string{
		migration.Pre:  "PreRunDate",
		migration.Core: "CoreRunDate",
		migration.Post: "PostRunDate",
	}[phase]

	return fmt.Sprintf(`
		MERGE Migrations.Migration AS target
		USING (SELECT N'%s' AS Name) AS source ON target.Name = source.Name
		WHEN MATCHED THEN UPDATE SET %s = SYSUTCDATETIME()
		WHEN NOT MATCHED THEN INSERT (Name, %s) VALUES (source.Name, SYSUTCDATETIME());
	`, escapeLiteral(migrationName), column, column)
}

func (SqlServerDialect) SelectAppliedMigrationsSQL(earliestName string) string {
	base := `SELECT Name, Hash,
		CASE WHEN PreRunDate IS NOT NULL THEN 1 ELSE 0 END,
		CASE WHEN CoreRunDate IS NOT NULL THEN 1 ELSE 0 END,
		CASE WHEN PostRunDate IS NOT NULL THEN 1 ELSE 0 END
		FROM Migrations.Migration`
	if earliestName == "" {
		return base
	}
	return base + fmt.Sprintf(` WHERE Name >= N'%s'`, escapeLiteral(earliestName))
}

func (SqlServerDialect) PrepareSessionSQL(runID uuid.UUID, workerID int) []string {
	return []string{
		fmt.Sprintf(`SET CONTEXT_INFO 0x%s`, hexContextInfo(runID)),
		fmt.Sprintf(`EXEC sp_set_session_context @key = N'RunId', @value = N'%s', @read_only = 1`, runID.String()),
		fmt.Sprintf(`EXEC sp_set_session_context @key = N'WorkerId', @value = %d, @read_only = 1`, workerID),
	}
}

func hexContextInfo(id uuid.UUID) string {
	return fmt.Sprintf("%x", id[:])
}
