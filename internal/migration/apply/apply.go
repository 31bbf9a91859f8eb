// Package apply drives per-target execution of a migration plan: schema
// support initialization, per-phase item execution, and the "mark applied
// through phase" tail batch (spec.md §4.4).
package apply

import (
	"context"
	"fmt"

	"github.com/sqldeploy/sqldeploy/internal/console"
	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

// Connection is the subset of the target connection contract the migration
// applicator needs (spec.md §4.7).
type Connection interface {
	InitializeMigrationSupport(ctx context.Context) error
	ExecuteMigrationContent(ctx context.Context, migrationName string, phase migration.Phase, sql string) error
	MarkMigrationApplied(ctx context.Context, migrationName string, phase migration.Phase) error
}

// Blocked is returned when a required migration's content cannot run in
// the current phase because an earlier phase's content is still pending
// for it (spec.md §4.4: "this migration blocks application in current
// phase").
type Blocked struct {
	MigrationName string
	Phase         migration.Phase
}

func (b *Blocked) Error() string {
	return fmt.Sprintf("migration %q blocks phase %s: required content has not yet been applied in an earlier phase", b.MigrationName, b.Phase)
}

// ApplyPhase executes every plan item eligible for the given phase, in
// order, against conn. On success each applied migration's State is
// advanced locally so a subsequent phase in the same run observes it.
func ApplyPhase(ctx context.Context, conn Connection, log console.Log, p *plan.Plan, phase migration.Phase) (int, error) {
	if err := conn.InitializeMigrationSupport(ctx); err != nil {
		return 0, fmt.Errorf("initialize migration support: %w", err)
	}

	items := itemsFor(p, phase)
	applied := 0
	for _, item := range items {
		m := item.migration
		if item.plannedPhase < phase && item.isRequired {
			err := &Blocked{MigrationName: m.Name, Phase: phase}
			log.Problem(err.Error())
			return applied, err
		}

		if err := ctx.Err(); err != nil {
			return applied, err
		}

		log.Applying(m.Name, phase)
		if !item.isEmpty {
			if err := conn.ExecuteMigrationContent(ctx, m.Name, phase, item.sql); err != nil {
				return applied, fmt.Errorf("apply migration %q (%s): %w", m.Name, phase, err)
			}
		}
		if err := conn.MarkMigrationApplied(ctx, m.Name, phase); err != nil {
			return applied, fmt.Errorf("mark migration %q applied through %s: %w", m.Name, phase, err)
		}

		advanceState(m, phase)
		applied++
		log.Applied(m.Name, phase)
	}

	log.Summary(fmt.Sprintf("Applied %d migration(s)", applied))
	return applied, nil
}

type planItem struct {
	migration    *migration.Migration
	plannedPhase migration.Phase
	isRequired   bool
	isEmpty      bool
	sql          string
}

func itemsFor(p *plan.Plan, phase migration.Phase) []planItem {
	var items []planItem
	switch phase {
	case migration.Pre:
		for _, m := range p.Pre {
			c := m.Pre
			items = append(items, planItem{m, migration.Pre, c.IsRequired, c.IsEmpty(), c.Sql})
		}
	case migration.Core:
		for _, item := range p.Core {
			c := contentAuthoredFor(item.Migration, item.ActualPhase)
			items = append(items, planItem{item.Migration, migration.Core, c.IsRequired, c.IsEmpty(), c.Sql})
		}
	case migration.Post:
		for _, m := range p.Post {
			c := contentAuthoredFor(m, migration.Post)
			items = append(items, planItem{m, migration.Post, c.IsRequired, c.IsEmpty(), c.Sql})
		}
	}
	return items
}

// contentAuthoredFor finds whichever authored phase's content ended up
// planned at targetPhase (content may have been promoted from an earlier
// authored phase).
func contentAuthoredFor(m *migration.Migration, targetPhase migration.Phase) migration.Content {
	for _, authored := range []migration.Phase{migration.Pre, migration.Core, migration.Post} {
		c := m.ContentFor(authored)
		if c.IsEmpty() {
			continue
		}
		if c.HasPlanned && c.PlannedPhase == targetPhase {
			return c
		}
		if !c.HasPlanned && authored == targetPhase {
			return c
		}
	}
	return migration.Content{}
}

func advanceState(m *migration.Migration, phase migration.Phase) {
	next := migration.State(phase) + 1
	if int(next) > int(m.State) {
		m.State = next
	}
}
