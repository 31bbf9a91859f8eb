package main

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sqldeploy/sqldeploy/internal/connection"
)

// openTargetConnection builds the TargetConnection for the single target
// this CLI invocation addresses, selecting the bundled sqlite smoke-test
// dialect under --local and the real SQL Server dialect otherwise
// (SPEC_FULL.md DOMAIN STACK; spec.md §1 treats the SQL client itself as
// an external collaborator — --driver/--dsn just name whatever
// database/sql driver the operator has registered).
func openTargetConnection() connection.TargetConnection {
	var dialect connection.Dialect
	driver, dsn := flagDriver, flagDSN
	if flagLocal {
		dialect = connection.SqliteDialect{}
		driver = "sqlite3"
		if dsn == "" {
			dsn = ":memory:"
		}
	} else {
		dialect = connection.SqlServerDialect{}
	}

	conn := connection.NewSqlTargetConnection(driver, dsn, dialect)
	if flagWhatIf {
		return connection.NewWhatIfTargetConnection(conn)
	}
	return conn
}

// defaultPreprocessor is the CLI's stand-in for the external T-SQL
// preprocessor (spec.md §1): it only splits on standalone "GO" batch
// separators, performing no variable substitution or file inclusion. A
// real deployment would inject a richer Preprocessor here; the engine
// itself never assumes more than this function signature.
func defaultPreprocessor(sql string) ([]string, error) {
	lines := strings.Split(sql, "\n")
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
	return batches, nil
}

// defaultHasher computes a sha256 hex digest over authored SQL, used to
// detect migration content drift (spec.md §3 HasChanged).
func defaultHasher(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
