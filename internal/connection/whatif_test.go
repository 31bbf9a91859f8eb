package connection

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/sqldeploy/sqldeploy/internal/migration"
	"github.com/sqldeploy/sqldeploy/internal/migration/plan"
)

type recordingConnection struct {
	opened    bool
	executed  []string
	marked    []string
	logger    Logger
}

func (c *recordingConnection) Open(ctx context.Context) error { c.opened = true; return nil }
func (c *recordingConnection) Prepare(ctx context.Context, runID uuid.UUID, workerID int) error {
	return nil
}
func (c *recordingConnection) InitializeMigrationSupport(ctx context.Context) error { return nil }
func (c *recordingConnection) GetAppliedMigrations(ctx context.Context, earliestName string) (map[string]plan.AppliedMigration, error) {
	return nil, nil
}
func (c *recordingConnection) ExecuteMigrationContent(ctx context.Context, name string, phase migration.Phase, sql string) error {
	c.executed = append(c.executed, sql)
	return nil
}
func (c *recordingConnection) MarkMigrationApplied(ctx context.Context, name string, phase migration.Phase) error {
	c.marked = append(c.marked, name)
	return nil
}
func (c *recordingConnection) ExecuteSeedBatch(ctx context.Context, sql string) error {
	c.executed = append(c.executed, sql)
	return nil
}
func (c *recordingConnection) Close() error           { return nil }
func (c *recordingConnection) SetLogger(logger Logger) { c.logger = logger }

type recordingLogger struct{ messages []Message }

func (l *recordingLogger) Message(m Message) { l.messages = append(l.messages, m) }

func TestWhatIfTargetConnectionSuppressesWrites(t *testing.T) {
	inner := &recordingConnection{}
	whatif := NewWhatIfTargetConnection(inner)
	log := &recordingLogger{}
	whatif.SetLogger(log)

	ctx := context.Background()
	if err := whatif.ExecuteMigrationContent(ctx, "M", migration.Pre, "DROP TABLE Foo"); err != nil {
		t.Fatalf("ExecuteMigrationContent: %v", err)
	}
	if err := whatif.MarkMigrationApplied(ctx, "M", migration.Pre); err != nil {
		t.Fatalf("MarkMigrationApplied: %v", err)
	}
	if err := whatif.ExecuteSeedBatch(ctx, "INSERT INTO Foo VALUES (1)"); err != nil {
		t.Fatalf("ExecuteSeedBatch: %v", err)
	}

	if len(inner.executed) != 0 || len(inner.marked) != 0 {
		t.Errorf("expected the inner connection to see no writes, got executed=%v marked=%v", inner.executed, inner.marked)
	}
	if len(log.messages) != 3 {
		t.Errorf("expected 3 logged would-execute messages, got %d", len(log.messages))
	}
}

func TestWhatIfTargetConnectionAllowsSchemaInitialization(t *testing.T) {
	inner := &recordingConnection{}
	whatif := NewWhatIfTargetConnection(inner)

	if err := whatif.InitializeMigrationSupport(context.Background()); err != nil {
		t.Fatalf("InitializeMigrationSupport: %v", err)
	}
}

func TestGetInitialContentSkipsBlankLinesAndComments(t *testing.T) {
	sql := "\n-- a leading comment\n\n  SELECT 1 FROM Foo\nSELECT 2"
	if got := GetInitialContent(sql); got != "SELECT 1 FROM Foo" {
		t.Errorf("GetInitialContent() = %q, want %q", got, "SELECT 1 FROM Foo")
	}
}

func TestGetInitialContentAllCommentsReturnsEmpty(t *testing.T) {
	sql := "-- only\n-- comments\n"
	if got := GetInitialContent(sql); got != "" {
		t.Errorf("GetInitialContent() = %q, want empty", got)
	}
}
