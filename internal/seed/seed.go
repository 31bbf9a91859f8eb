// Package seed models content seeds: named collections of T-SQL modules
// whose execution order is determined by declared dependencies (spec.md
// §3, §4.5, §4.6).
package seed

import (
	"path/filepath"
	"strings"
)

// Seed identifies a seed root directory (spec.md §3).
type Seed struct {
	Name string
	Path string
}

// MainPath returns "<Path>/_Main.sql" (spec.md §6.1).
func (s Seed) MainPath() string {
	return filepath.Join(s.Path, "_Main.sql")
}

// AnyWorker and AllWorkers are the two special WorkerId values a module
// can declare via "--# WORKER:" (spec.md §3).
const (
	AnyWorker  = 0
	AllWorkers = -1
)

// InitModuleName is the synthetic module every loaded seed always
// contains at least (spec.md §3, §4.5: "There is always a synthetic
// initial module named init").
const InitModuleName = "init"

// Module is one named, ordered batch group within a seed (spec.md §3).
type Module struct {
	Name     string
	WorkerID int
	Batches  []string
	Provides map[string]struct{}
	Requires map[string]struct{}
}

func newModule(name string) *Module {
	return &Module{
		Name:     name,
		WorkerID: AnyWorker,
		Provides: make(map[string]struct{}),
		Requires: make(map[string]struct{}),
	}
}

func (m *Module) addProvides(topics []string) {
	for _, t := range topics {
		m.Provides[strings.ToLower(t)] = struct{}{}
	}
}

func (m *Module) addRequires(topics []string) {
	for _, t := range topics {
		m.Requires[strings.ToLower(t)] = struct{}{}
	}
}

// Loaded pairs a Seed with the modules parsed out of its source tree
// (spec.md §3 LoadedSeed).
type Loaded struct {
	Seed    Seed
	Modules []*Module
}

