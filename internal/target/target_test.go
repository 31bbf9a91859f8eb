package target

import (
	"runtime"
	"testing"
)

type fakeSource struct {
	connStr   string
	user      string
	pass      string
	hasCred   bool
	server    string
	database  string
}

func (s fakeSource) ConnectionString() string { return s.connStr }
func (s fakeSource) Credential() (string, string, bool) { return s.user, s.pass, s.hasCred }
func (s fakeSource) ServerDisplayName() string { return s.server }
func (s fakeSource) DatabaseDisplayName() string { return s.database }

func TestNewCapturesSourceAndComposesDisplayName(t *testing.T) {
	src := fakeSource{connStr: "dsn", user: "sa", pass: "secret", hasCred: true, server: "srv1", database: "db1"}
	tg := New(src)

	if tg.ConnectionString() != "dsn" {
		t.Errorf("ConnectionString = %q, want dsn", tg.ConnectionString())
	}
	if u, p, ok := tg.Credential(); u != "sa" || p != "secret" || !ok {
		t.Errorf("Credential = (%q, %q, %v), want (sa, secret, true)", u, p, ok)
	}
	if got := tg.FullDisplayName(); got != "srv1.db1" {
		t.Errorf("FullDisplayName = %q, want srv1.db1", got)
	}
}

func TestNewWithoutCredentialReportsNotOk(t *testing.T) {
	src := fakeSource{server: "srv1", database: "db1"}
	tg := New(src)
	if _, _, ok := tg.Credential(); ok {
		t.Error("expected ok=false when the source has no explicit credential")
	}
}

func TestNewGroupRejectsNilTarget(t *testing.T) {
	tg := New(fakeSource{server: "s", database: "d"})
	if _, err := NewGroup("g", []*Target{tg, nil}, 0, 0); err == nil {
		t.Error("expected NewGroup to reject a nil target")
	}
}

func TestEffectiveParallelismDefaultsToNumCPU(t *testing.T) {
	g, err := NewGroup("g", nil, 0, -1)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if got := g.EffectiveMaxParallelism(); got != runtime.NumCPU() {
		t.Errorf("EffectiveMaxParallelism = %d, want %d", got, runtime.NumCPU())
	}
	if got := g.EffectiveMaxParallelismPerTarget(); got != runtime.NumCPU() {
		t.Errorf("EffectiveMaxParallelismPerTarget = %d, want %d", got, runtime.NumCPU())
	}
}

func TestEffectiveParallelismHonorsPositiveOverride(t *testing.T) {
	g, err := NewGroup("g", nil, 4, 2)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if got := g.EffectiveMaxParallelism(); got != 4 {
		t.Errorf("EffectiveMaxParallelism = %d, want 4", got)
	}
	if got := g.EffectiveMaxParallelismPerTarget(); got != 2 {
		t.Errorf("EffectiveMaxParallelismPerTarget = %d, want 2", got)
	}
}
