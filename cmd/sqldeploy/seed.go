package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy/internal/console"
	"github.com/sqldeploy/sqldeploy/internal/limiter"
	"github.com/sqldeploy/sqldeploy/internal/seed"
	seedapply "github.com/sqldeploy/sqldeploy/internal/seed/apply"
)

var seedCmd = &cobra.Command{
	Use:   "seed <name>",
	Short: "Load and apply a content seed to the target",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	seeds, err := seed.Discover(flagRoot)
	if err != nil {
		return err
	}
	var found *seed.Seed
	for i := range seeds {
		if seeds[i].Name == name {
			found = &seeds[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("seed %q not found under %s/Seeds", name, flagRoot)
	}

	loaded, err := seed.Load(*found)
	if err != nil {
		return err
	}

	conn := openTargetConnection()
	if err := conn.Open(ctx); err != nil {
		return fmt.Errorf("open target connection: %w", err)
	}
	defer conn.Close()

	fileConsole := console.NewFileConsole(console.FileOptions{Dir: flagLogDir})
	log, err := fileConsole.CreateLog(console.SeedLogName(flagServer, flagDatabase, name))
	if err != nil {
		return err
	}
	defer log.Close()
	log.Header(console.Header("sqldeploy", name))

	workers := flagMaxParallelismPerTarget
	if workers <= 0 {
		workers = 1
	}

	fileConsole.ReportApplying(flagServer+"."+flagDatabase, "seed "+name)
	result := seedapply.Apply(ctx, conn, log, loaded, seedapply.Options{
		MaxWorkers:    workers,
		ActionLimiter: limiter.New(flagMaxParallelism),
	})
	if result.Disposition == seedapply.Failed {
		fileConsole.ReportProblem(flagServer+"."+flagDatabase, result.Err.Error())
		return result.Err
	}

	fileConsole.ReportApplied(flagServer+"."+flagDatabase, fmt.Sprintf("seed %s (%d modules, run %s)", name, result.ModulesApplied, result.RunID))
	return nil
}
