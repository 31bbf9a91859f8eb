package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the migration plan that would be applied to the target",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tPLANNED PHASE")
	for _, m := range p.Pre {
		fmt.Fprintf(w, "%s\t%s\tPre\n", m.Name, m.Status())
	}
	for _, item := range p.Core {
		fmt.Fprintf(w, "%s\t%s\tCore (%s)\n", item.Migration.Name, item.Migration.Status(), item.ActualPhase)
	}
	for _, m := range p.Post {
		fmt.Fprintf(w, "%s\t%s\tPost\n", m.Name, m.Status())
	}
	w.Flush()

	fmt.Printf("\nCore phase required: %v\n", p.IsCoreRequired())
	return nil
}
