package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Discover walks "<root>/Seeds/<Name>/_Main.sql" and returns one Seed per
// subdirectory that has a main file, ordered by name (spec.md §6.1).
func Discover(root string) ([]Seed, error) {
	seedsDir := filepath.Join(root, "Seeds")

	entries, err := os.ReadDir(seedsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discover seeds in %s: %w", seedsDir, err)
	}

	var found []Seed
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s := Seed{Name: e.Name(), Path: filepath.Join(seedsDir, e.Name())}
		if _, err := os.Stat(s.MainPath()); err != nil {
			continue
		}
		found = append(found, s)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// Load reads and parses s's main file, returning a Loaded seed. The raw
// file text goes straight to Parse: unlike the migration loader, no
// Preprocessor runs on seed text, so variables and includes are not
// expanded and "GO" lines stay inside a module's batch text (the target
// connection splits on them when it executes the batch).
func Load(s Seed) (*Loaded, error) {
	raw, err := os.ReadFile(s.MainPath())
	if err != nil {
		return nil, fmt.Errorf("load seed %q: %w", s.Name, err)
	}

	modules, err := Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", s.Name, err)
	}

	return &Loaded{Seed: s, Modules: modules}, nil
}
