package migration

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Preprocessor expands a migration's raw T-SQL into an ordered list of
// executable batches (GO separators, variable substitution, file
// includes). It is treated as an external collaborator (spec.md §1): the
// engine only ever calls it as a pure string-to-batches function.
type Preprocessor func(sql string) ([]string, error)

// Hasher computes a deterministic hex digest over authored SQL. Also an
// external collaborator (spec.md §1).
type Hasher func(sql string) string

var directiveLine = regexp.MustCompile(`(?i)^\s*--#\s*(PRE|CORE|POST|REQUIRES)\s*:?(.*)$`)

// Loader reads migration source files, hashes them, and splits their
// batch stream into Pre/Core/Post content using the authored phase and
// dependency directives (spec.md §4.3).
type Loader struct {
	Preprocess Preprocessor
	Hash       Hasher
}

// NewLoader constructs a Loader with the given external collaborators.
func NewLoader(pp Preprocessor, hash Hasher) *Loader {
	return &Loader{Preprocess: pp, Hash: hash}
}

// Load reads m.Path, computes m.Hash, and populates m.Pre/Core/Post and
// m.Depends. A migration with no Path (missing from disk) is left
// untouched — it's already fully described by applied-state data.
func (l *Loader) Load(m *Migration) error {
	if m.Path == "" {
		return nil
	}

	raw, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("load migration %q: %w", m.Name, err)
	}
	text := string(raw)
	m.Hash = l.Hash(text)

	batches, err := l.Preprocess(text)
	if err != nil {
		return fmt.Errorf("preprocess migration %q: %w", m.Name, err)
	}

	phase := Pre
	var phaseBatches = map[Phase][]string{Pre: nil, Core: nil, Post: nil}

	for _, batch := range batches {
		lines := strings.Split(batch, "\n")
		var kept []string
		flush := func() {
			if body := strings.TrimSpace(strings.Join(kept, "\n")); body != "" {
				phaseBatches[phase] = append(phaseBatches[phase], body)
			}
			kept = nil
		}
		for _, line := range lines {
			if match := directiveLine.FindStringSubmatch(line); match != nil {
				keyword := strings.ToUpper(match[1])
				arg := strings.TrimSpace(match[2])
				switch keyword {
				case "PRE":
					flush()
					phase = Pre
				case "CORE":
					flush()
					phase = Core
				case "POST":
					flush()
					phase = Post
				case "REQUIRES":
					for _, name := range strings.Fields(arg) {
						m.appendDepend(name)
					}
				}
				continue
			}
			kept = append(kept, line)
		}
		flush()
	}

	m.Pre = contentFrom(phaseBatches[Pre])
	m.Core = contentFrom(phaseBatches[Core])
	m.Post = contentFrom(phaseBatches[Post])

	return nil
}

func contentFrom(batches []string) Content {
	sql := strings.Join(batches, "\nGO\n")
	return Content{
		Sql:        sql,
		IsRequired: strings.TrimSpace(sql) != "",
	}
}

// appendDepend appends name to m.Depends if not already present
// (case-insensitive), matching --# REQUIRES accumulation semantics shared
// with seed modules' PROVIDES/REQUIRES accumulation (spec.md §4.5).
func (m *Migration) appendDepend(name string) {
	for _, d := range m.Depends {
		if strings.EqualFold(d, name) {
			return
		}
	}
	m.Depends = append(m.Depends, name)
}
