// Package plan computes a phase-aware migration plan for one target: it
// merges applied state into defined migrations, resolves dependencies,
// promotes phase content where dependencies require it, and produces
// ordered per-phase execution lists (spec.md §4.3).
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

// AppliedMigration is the subset of a migration's row the engine fetches
// from the target's migration-support schema (spec.md §6.2).
type AppliedMigration struct {
	Name         string
	Hash         string
	PreApplied   bool
	CoreApplied  bool
	PostApplied  bool
}

// CoreItem pairs a migration with the phase its content actually runs in,
// after promotion (spec.md §3 MigrationPlan.Core).
type CoreItem struct {
	Migration    *migration.Migration
	ActualPhase  migration.Phase
}

// Plan is the ordered, phase-aware result of planning one (target,
// session) pair (spec.md §3 MigrationPlan).
type Plan struct {
	Pre               []*migration.Migration
	Core              []CoreItem
	Post              []*migration.Migration
	PendingMigrations []*migration.Migration
}

// IsCoreRequired reports whether any Core item is required — i.e. whether
// this plan needs a downtime window (spec.md §4.3 step 5).
func (p *Plan) IsCoreRequired() bool {
	for _, item := range p.Core {
		if isRequiredForPromotedPhase(item) {
			return true
		}
	}
	return false
}

func isRequiredForPromotedPhase(item CoreItem) bool {
	for _, phase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
		c := item.Migration.ContentFor(phase)
		if c.HasPlanned && c.PlannedPhase == migration.Core && c.IsRequired {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the given phase's plan list has no non-pseudo
// items (spec.md §4.3 step 5: "Empty-phase detection ignores pseudo-
// migrations").
func (p *Plan) IsEmpty(phase migration.Phase) bool {
	switch phase {
	case migration.Pre:
		return countNonPseudo(p.Pre) == 0
	case migration.Post:
		return countNonPseudo(p.Post) == 0
	default:
		for _, item := range p.Core {
			if !item.Migration.IsPseudo() {
				return false
			}
		}
		return true
	}
}

func countNonPseudo(ms []*migration.Migration) int {
	n := 0
	for _, m := range ms {
		if !m.IsPseudo() {
			n++
		}
	}
	return n
}

// Options controls planning behavior that isn't purely structural.
type Options struct {
	// AllowCorePhase must be true for a plan containing required Core
	// content to validate; otherwise planning reports a validation error
	// (spec.md §7: "forbidden Core content without AllowCorePhase").
	AllowCorePhase bool
}

// Build merges defined migrations with applied state, resolves
// dependencies, computes phase promotion to a fixpoint, and composes the
// ordered plan (spec.md §4.3 steps 1-5).
func Build(defined []*migration.Migration, applied map[string]AppliedMigration, opts Options) (*Plan, error) {
	byName := make(map[string]*migration.Migration, len(defined))
	for _, m := range defined {
		byName[strings.ToLower(m.Name)] = m
	}

	// Step 1: merge applied state. Migrations present only in applied
	// state (missing from disk) get a synthetic Migration with no Path.
	for name, a := range applied {
		key := strings.ToLower(name)
		m, ok := byName[key]
		if !ok {
			m = &migration.Migration{Name: name}
			byName[key] = m
			defined = append(defined, m)
		}
		m.State = stateFrom(a)
		if a.Hash != "" && m.Hash != "" && a.Hash != m.Hash {
			m.HasChanged = true
		} else if a.Hash != "" && m.Hash == "" {
			m.Hash = a.Hash
		}
	}

	migration.Sort(defined)

	// Step 2: resolve dependencies.
	indexOf := make(map[string]int, len(defined))
	for i, m := range defined {
		indexOf[strings.ToLower(m.Name)] = i
	}
	for i, m := range defined {
		for _, dep := range m.Depends {
			if strings.EqualFold(dep, m.Name) {
				m.AddDiagnostic(fmt.Sprintf("migration %q depends on itself", m.Name), true)
				continue
			}
			j, ok := indexOf[strings.ToLower(dep)]
			if !ok {
				m.AddDiagnostic(fmt.Sprintf("migration %q requires undefined migration %q", m.Name, dep), true)
				continue
			}
			if j > i {
				m.AddDiagnostic(fmt.Sprintf("migration %q requires %q, which sorts later (forward dependency)", m.Name, dep), true)
				continue
			}
			m.ResolvedDepends = append(m.ResolvedDepends, defined[j])
		}
	}

	for _, m := range defined {
		if m.HasChanged {
			m.AddDiagnostic(fmt.Sprintf("migration %q has changed since it was applied", m.Name), true)
		}
	}

	for _, m := range defined {
		if m.HasFatalDiagnostics() {
			return nil, fmt.Errorf("plan validation failed: %s", firstFatal(m))
		}
	}

	// Step 3: promote phase content to a fixpoint.
	initPlanned(defined)
	changed := true
	for changed {
		changed = false
		for _, m := range defined {
			for _, dep := range m.ResolvedDepends {
				for _, depPhase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
					depContent := dep.ContentFor(depPhase)
					if depContent.IsEmpty() || dep.IsAppliedThrough(depPhase) {
						continue
					}
					if promoteIfNeeded(m, depPhase) {
						changed = true
					}
				}
			}
		}
	}

	for _, m := range defined {
		for _, phase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
			c := m.ContentFor(phase)
			if !c.HasPlanned || c.PlannedPhase == phase {
				continue
			}
			if m.IsAppliedThrough(c.PlannedPhase) {
				m.AddDiagnostic(fmt.Sprintf("migration %q: content authored for phase %s cannot be promoted to %s, already applied (incomplete)", m.Name, phase, c.PlannedPhase), true)
			}
		}
	}
	for _, m := range defined {
		if m.HasFatalDiagnostics() {
			return nil, fmt.Errorf("plan validation failed: %s", firstFatal(m))
		}
	}

	if !opts.AllowCorePhase {
		for _, m := range defined {
			if m.Core.IsRequired && !m.Core.IsEmpty() {
				return nil, fmt.Errorf("plan validation failed: migration %q has required Core content but Core phase is not allowed for this session", m.Name)
			}
		}
	}

	// Step 4: compose the ordered plan. A phase already applied is never
	// replanned, even if CanApplyThrough would otherwise allow it (that
	// check is about skipped intervening phases, not the target phase
	// itself).
	p := &Plan{PendingMigrations: defined}
	for _, m := range defined {
		if !m.Pre.IsEmpty() && !m.IsAppliedThrough(migration.Pre) && m.CanApplyThrough(migration.Pre) && plannedPhaseOf(m, migration.Pre) == migration.Pre {
			p.Pre = append(p.Pre, m)
		}
	}
	for _, m := range defined {
		for _, phase := range []migration.Phase{migration.Pre, migration.Core} {
			c := m.ContentFor(phase)
			if c.IsEmpty() {
				continue
			}
			actual := plannedPhaseOf(m, phase)
			if actual == migration.Core && !m.IsAppliedThrough(migration.Core) && m.CanApplyThrough(phase) {
				p.Core = append(p.Core, CoreItem{Migration: m, ActualPhase: actual})
			}
		}
	}
	sort.SliceStable(p.Core, func(i, j int) bool {
		return migration.Comparer(p.Core[i].Migration, p.Core[j].Migration) < 0
	})
	for _, m := range defined {
		for _, phase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
			c := m.ContentFor(phase)
			if c.IsEmpty() {
				continue
			}
			actual := plannedPhaseOf(m, phase)
			if actual == migration.Post && !m.IsAppliedThrough(migration.Post) && m.CanApplyThrough(migration.Post) {
				p.Post = append(p.Post, m)
				break
			}
		}
	}

	return p, nil
}

func firstFatal(m *migration.Migration) string {
	for _, d := range m.Diagnostics {
		if d.Fatal {
			return d.Message
		}
	}
	return ""
}

func stateFrom(a AppliedMigration) migration.State {
	switch {
	case a.PostApplied:
		return migration.AppliedPost
	case a.CoreApplied:
		return migration.AppliedCore
	case a.PreApplied:
		return migration.AppliedPre
	default:
		return migration.NotApplied
	}
}

// initPlanned seeds each non-empty content's PlannedPhase with its
// authored phase.
func initPlanned(defined []*migration.Migration) {
	for _, m := range defined {
		for _, phase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
			c := m.ContentFor(phase)
			if c.IsEmpty() {
				continue
			}
			c.HasPlanned = true
			c.PlannedPhase = phase
			m.SetContentFor(phase, c)
		}
	}
}

// promoteIfNeeded promotes m's content whose PlannedPhase is earlier than
// target to target. Promotion only ever moves later (Pre→Core→Post),
// never demotes (spec.md §3, §8 invariant 3).
func promoteIfNeeded(m *migration.Migration, target migration.Phase) bool {
	changed := false
	for _, authoredPhase := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
		c := m.ContentFor(authoredPhase)
		if !c.HasPlanned || c.IsEmpty() {
			continue
		}
		if c.PlannedPhase < target {
			c.PlannedPhase = target
			m.SetContentFor(authoredPhase, c)
			changed = true
		}
	}
	return changed
}

// plannedPhaseOf returns the PlannedPhase for the content authored at
// authoredPhase, or authoredPhase itself if no plan was recorded.
func plannedPhaseOf(m *migration.Migration, authoredPhase migration.Phase) migration.Phase {
	c := m.ContentFor(authoredPhase)
	if !c.HasPlanned {
		return authoredPhase
	}
	return c.PlannedPhase
}
