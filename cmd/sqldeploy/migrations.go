package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

var migrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "Inspect migrations discovered on disk",
}

var migrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List migrations discovered under Migrations/, in apply order",
	RunE:  runMigrationsList,
}

func init() {
	migrationsCmd.AddCommand(migrationsListCmd)
}

func runMigrationsList(cmd *cobra.Command, args []string) error {
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

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHASH\tDEPENDS ON")
	for _, m := range defined {
		hash := m.Hash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%v\n", m.Name, hash, m.Depends)
	}
	return w.Flush()
}
