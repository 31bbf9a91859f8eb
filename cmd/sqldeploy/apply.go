package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy/internal/console"
	"github.com/sqldeploy/sqldeploy/internal/migration"
	migrationapply "github.com/sqldeploy/sqldeploy/internal/migration/apply"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

var applyCmd = &cobra.Command{
	Use:   "apply [pre|core|post|all]",
	Short: "Discover, plan, and apply schema migrations to the target",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	phases := []migration.Phase{migration.Pre, migration.Core, migration.Post}
	if len(args) == 1 {
		switch args[0] {
		case "pre":
			phases = []migration.Phase{migration.Pre}
		case "core":
			phases = []migration.Phase{migration.Core}
		case "post":
			phases = []migration.Phase{migration.Post}
		case "all":
		default:
			return fmt.Errorf("unknown phase %q: expected pre, core, post, or all", args[0])
		}
	}

	run := func() error {
		return withLogDirLock(flagLogDir, func() error {
			return applyPhases(cmd, phases)
		})
	}
	if flagWatch {
		return watchAndReapply(flagRoot, run)
	}
	return run()
}

func applyPhases(cmd *cobra.Command, phases []migration.Phase) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	defined, err := migration.Discover(flagRoot)
	if err != nil {
		return err
	}
	loader := migration.NewLoader(defaultPreprocessor, defaultHasher)
	for _, m := range defined {
		if err := loader.Load(m); err != nil {
			return err
		}
	}

	conn := openTargetConnection()
	if err := conn.Open(ctx); err != nil {
		return fmt.Errorf("open target connection: %w", err)
	}
	defer conn.Close()

	applied, err := conn.GetAppliedMigrations(ctx, "")
	if err != nil {
		return fmt.Errorf("fetch applied migrations: %w", err)
	}

	p, err := plan.Build(defined, applied, plan.Options{AllowCorePhase: flagAllowCorePhase})
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	fileConsole := console.NewFileConsole(console.FileOptions{Dir: flagLogDir})
	var total int
	for _, phase := range phases {
		if p.IsEmpty(phase) {
			continue
		}
		log, err := fileConsole.CreateLog(console.MigrationLogName(flagServer, flagDatabase, phase))
		if err != nil {
			return err
		}
		log.Header(console.Header("sqldeploy", phase.String()))

		fileConsole.ReportApplying(flagServer+"."+flagDatabase, phase.String())
		n, err := migrationapply.ApplyPhase(ctx, conn, log, p, phase)
		_ = log.Close()
		if err != nil {
			fileConsole.ReportProblem(flagServer+"."+flagDatabase, err.Error())
			return err
		}
		total += n
		fileConsole.ReportApplied(flagServer+"."+flagDatabase, fmt.Sprintf("%s (%d migrations)", phase, n))
	}

	fmt.Printf("Applied %d migration phase(s) total\n", total)
	return nil
}
