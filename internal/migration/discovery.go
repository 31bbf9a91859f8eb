package migration

import (
	"fmt"
	"os"
	"path/filepath"
)

// Discover walks "<root>/Migrations/<Name>/_Main.sql" and returns one
// Migration per subdirectory, sorted by Comparer (spec.md §6.1).
//
// A migration directory without a _Main.sql file is skipped rather than
// erroring, since a migration's Path can be null/absent ("missing":
// registered in the database but absent on disk) — discovery only ever
// produces Migrations it found on disk;
// reconciliation with database-only entries happens later, during
// planning, when applied state is merged in.
func Discover(root string) ([]*Migration, error) {
	migrationsDir := filepath.Join(root, "Migrations")

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discover migrations in %s: %w", migrationsDir, err)
	}

	var found []*Migration
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		mainPath := filepath.Join(migrationsDir, name, "_Main.sql")
		if _, err := os.Stat(mainPath); err != nil {
			continue
		}
		found = append(found, &Migration{
			Name: name,
			Path: mainPath,
		})
	}

	Sort(found)
	return found, nil
}
