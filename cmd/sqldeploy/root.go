package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy/internal/config"
)

var (
	flagRoot                    string
	flagServer                  string
	flagDatabase                string
	flagDriver                  string
	flagDSN                     string
	flagLocal                   bool
	flagLogDir                  string
	flagMaxParallelism          int
	flagMaxParallelismPerTarget int
	flagMaxErrorCount           int
	flagWhatIf                  bool
	flagAllowCorePhase          bool
)

var rootCmd = &cobra.Command{
	Use:           "sqldeploy",
	Short:         "Apply schema migrations and content seeds to SQL Server / Azure SQL Database targets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("initialize configuration: %w", err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", ".", "project root containing Migrations/ and Seeds/")
	pf.StringVar(&flagServer, "server", "local", "display name of the target server")
	pf.StringVar(&flagDatabase, "database", "main", "display name of the target database")
	pf.StringVar(&flagDriver, "driver", "sqlserver", "database/sql driver name for the target connection")
	pf.StringVar(&flagDSN, "dsn", "", "data source name / connection string for the target connection")
	pf.BoolVar(&flagLocal, "local", false, "use the bundled sqlite smoke-test backend instead of --driver/--dsn")
	pf.StringVar(&flagLogDir, "log-dir", "sqldeploy-logs", "directory for per-target rotating log files")
	pf.IntVar(&flagMaxParallelism, "max-parallelism", 0, "global cap on concurrent actions (0 = unbounded)")
	pf.IntVar(&flagMaxParallelismPerTarget, "max-parallelism-per-target", 0, "per-target cap on concurrent actions (0 = 1)")
	pf.IntVar(&flagMaxErrorCount, "max-error-count", 0, "tolerated failed-target count before the session cancels")
	pf.BoolVar(&flagWhatIf, "dry-run", false, "suppress writes; log what would have executed")
	pf.BoolVar(&flagAllowCorePhase, "allow-core-phase", false, "permit planning Core-phase content (requires downtime)")

	rootCmd.AddCommand(applyCmd, seedCmd, statusCmd, migrationsCmd)
}
