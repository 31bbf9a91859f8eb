package connection

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

// WhatIfTargetConnection decorates a real TargetConnection, intercepting
// every write-capable operation and logging what it would have done
// instead of executing it (spec.md §4.4, §4.7).
type WhatIfTargetConnection struct {
	Inner  TargetConnection
	logger Logger
}

// NewWhatIfTargetConnection wraps inner so writes are suppressed.
func NewWhatIfTargetConnection(inner TargetConnection) *WhatIfTargetConnection {
	return &WhatIfTargetConnection{Inner: inner}
}

func (c *WhatIfTargetConnection) SetLogger(logger Logger) {
	c.logger = logger
	c.Inner.SetLogger(logger)
}

func (c *WhatIfTargetConnection) Open(ctx context.Context) error { return c.Inner.Open(ctx) }

func (c *WhatIfTargetConnection) Prepare(ctx context.Context, runID uuid.UUID, workerID int) error {
	return c.Inner.Prepare(ctx, runID, workerID)
}

func (c *WhatIfTargetConnection) InitializeMigrationSupport(ctx context.Context) error {
	// Reads/idempotent schema creation are allowed even in what-if mode,
	// since subsequent planning depends on the schema existing.
	return c.Inner.InitializeMigrationSupport(ctx)
}

func (c *WhatIfTargetConnection) GetAppliedMigrations(ctx context.Context, earliestName string) (map[string]plan.AppliedMigration, error) {
	return c.Inner.GetAppliedMigrations(ctx, earliestName)
}

func (c *WhatIfTargetConnection) ExecuteMigrationContent(ctx context.Context, migrationName string, phase migration.Phase, sql string) error {
	c.logWouldExecute(sql)
	return nil
}

func (c *WhatIfTargetConnection) MarkMigrationApplied(ctx context.Context, migrationName string, phase migration.Phase) error {
	c.logWouldExecute(fmt.Sprintf("-- mark %s applied through %s", migrationName, phase))
	return nil
}

func (c *WhatIfTargetConnection) ExecuteSeedBatch(ctx context.Context, sql string) error {
	c.logWouldExecute(sql)
	return nil
}

func (c *WhatIfTargetConnection) Close() error { return c.Inner.Close() }

func (c *WhatIfTargetConnection) logWouldExecute(sqlText string) {
	if c.logger == nil {
		return
	}
	c.logger.Message(Message{
		Severity: 0,
		Text:     "Would execute batch beginning with: " + GetInitialContent(sqlText),
	})
}

// GetInitialContent returns the first non-blank, non-line-comment line of
// sql, trimmed — used to summarize a suppressed what-if batch (spec.md
// §4.4, tested by scenario S7).
func GetInitialContent(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		return trimmed
	}
	return ""
}
