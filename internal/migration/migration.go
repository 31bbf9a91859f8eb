// Package migration models schema migrations: ordered, hash-identified
// units of T-SQL split into Pre/Core/Post phases (spec.md §3, §4.3).
package migration

import (
	"sort"
	"strings"
)

// Phase is one of the three deployment phases a migration's content can
// belong to. Core is considered to require downtime; zero-downtime deploys
// drive only Pre and Post (spec.md GLOSSARY).
type Phase int

const (
	Pre Phase = iota
	Core
	Post
)

func (p Phase) String() string {
	switch p {
	case Pre:
		return "Pre"
	case Core:
		return "Core"
	case Post:
		return "Post"
	default:
		return "Unknown"
	}
}

// Index returns the 0/1/2 index used for log file naming (spec.md §6.3).
func (p Phase) Index() int { return int(p) }

// State encodes how far a migration has been applied. The numeric value N
// means "next phase to apply is N": NotApplied=0 (next Pre),
// AppliedPre=1 (next Core), AppliedCore=2 (next Post), AppliedPost=3
// (done). The two helper predicates IsAppliedThrough and CanApplyThrough
// interpret this encoding for callers (spec.md §9).
type State int

const (
	NotApplied State = iota
	AppliedPre
	AppliedCore
	AppliedPost
)

// IsAppliedThrough reports whether the migration has already completed the
// given phase: State > phase (spec.md §3, §8 invariant 4).
func (s State) IsAppliedThrough(phase Phase) bool {
	return int(s) > int(phase)
}

// next returns the phase that would be applied next given this state. For
// a fully applied migration (AppliedPost) it returns Phase(3), which lies
// past Post.
func (s State) next() Phase {
	return Phase(s)
}

// Content holds one phase's authored SQL and planning metadata for a
// single migration.
type Content struct {
	Sql          string
	IsRequired   bool
	HasPlanned   bool
	PlannedPhase Phase
}

// IsEmpty reports whether this phase has no meaningful SQL — spec.md §9
// open question resolved in favor of "whitespace-only counts as empty"
// uniformly for both migrations and seeds, since seed batches already
// use that reading and nothing in the data model depends on a migration
// phase with only whitespace ever being treated as present.
func (c Content) IsEmpty() bool {
	return strings.TrimSpace(c.Sql) == ""
}

// Diagnostic is a single validation finding attached to a Migration during
// planning (spec.md §3 "Diagnostics").
type Diagnostic struct {
	Message string
	Fatal   bool
}

// Migration is a named schema unit, merged from on-disk definition and
// applied-state rows for one target (spec.md §3).
type Migration struct {
	Name   string
	Path   string // empty ⇒ "missing": registered in DB but absent on disk
	Hash   string // empty if unknown
	State  State
	Pre    Content
	Core   Content
	Post   Content

	Depends         []string
	ResolvedDepends []*Migration

	// HasChanged is true iff the recomputed hash of the local file differs
	// from the hash recorded for an already-applied migration.
	HasChanged bool

	Diagnostics []Diagnostic
}

// IsPseudo reports whether this migration is one of the two bracketing
// pseudo-migrations, compared case-insensitive ordinal (spec.md GLOSSARY).
func (m *Migration) IsPseudo() bool {
	return strings.EqualFold(m.Name, "_Begin") || strings.EqualFold(m.Name, "_End")
}

// ContentFor returns the Content for the given phase.
func (m *Migration) ContentFor(phase Phase) Content {
	switch phase {
	case Pre:
		return m.Pre
	case Core:
		return m.Core
	default:
		return m.Post
	}
}

// SetContentFor overwrites the Content for the given phase.
func (m *Migration) SetContentFor(phase Phase, c Content) {
	switch phase {
	case Pre:
		m.Pre = c
	case Core:
		m.Core = c
	default:
		m.Post = c
	}
}

// IsAppliedThrough reports whether m has completed the given phase on the
// target it was merged with (spec.md §3 invariant).
func (m *Migration) IsAppliedThrough(phase Phase) bool {
	return m.State.IsAppliedThrough(phase)
}

// CanApplyThrough reports whether m could still be driven through the
// given phase: pseudo-migrations are always applicable; otherwise State
// must not already be past phase+1, and every phase strictly between
// State and phase must have empty SQL (spec.md §3).
func (m *Migration) CanApplyThrough(phase Phase) bool {
	if m.IsPseudo() {
		return true
	}
	if int(m.State) > int(phase)+1 {
		return false
	}
	for p := m.State.next(); p < phase; p++ {
		if !m.ContentFor(p).IsEmpty() {
			return false
		}
	}
	return true
}

// AddDiagnostic appends a validation finding.
func (m *Migration) AddDiagnostic(msg string, fatal bool) {
	m.Diagnostics = append(m.Diagnostics, Diagnostic{Message: msg, Fatal: fatal})
}

// HasFatalDiagnostics reports whether any recorded diagnostic is fatal
// (e.g. Incomplete, cycle, unresolved dependency).
func (m *Migration) HasFatalDiagnostics() bool {
	for _, d := range m.Diagnostics {
		if d.Fatal {
			return true
		}
	}
	return false
}

// Status renders the short status string used in log tables (spec.md §3,
// §6.3): "Changed" when hash mismatch was detected, otherwise the state
// name.
func (m *Migration) Status() string {
	if m.HasChanged {
		return "Changed"
	}
	switch m.State {
	case NotApplied:
		return "NotApplied"
	case AppliedPre:
		return "AppliedPre"
	case AppliedCore:
		return "AppliedCore"
	case AppliedPost:
		return "AppliedPost"
	default:
		return "Unknown"
	}
}

// Comparer orders migrations by (rank, name): rank(_Begin) = -1,
// rank(_End) = +1, else 0; name compared case-insensitive ordinal
// (spec.md GLOSSARY: MigrationComparer).
func Comparer(a, b *Migration) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}

func rank(m *Migration) int {
	switch {
	case strings.EqualFold(m.Name, "_Begin"):
		return -1
	case strings.EqualFold(m.Name, "_End"):
		return 1
	default:
		return 0
	}
}

// Sort orders migrations in place using Comparer.
func Sort(migrations []*Migration) {
	sort.SliceStable(migrations, func(i, j int) bool {
		return Comparer(migrations[i], migrations[j]) < 0
	})
}
