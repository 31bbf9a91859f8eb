package migration

import (
	"os"
	"path/filepath"
	"testing"
)

func identityPreprocessor(sql string) ([]string, error) {
	return []string{sql}, nil
}

func constantHasher(sql string) string { return "hash:" + sql }

func TestLoaderSplitsDirectivesIntoPhases(t *testing.T) {
	m := &Migration{Name: "M"}
	l := NewLoader(identityPreprocessor, constantHasher)

	dir := t.TempDir()
	path := filepath.Join(dir, "_Main.sql")
	content := "--# PRE\nSELECT 1\n--# REQUIRES: Other\n--# CORE\nALTER TABLE Foo ADD Bar int\n--# POST\nSELECT 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m.Path = path

	if err := l.Load(m); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := m.Pre.Sql; got != "SELECT 1" {
		t.Errorf("Pre.Sql = %q, want %q", got, "SELECT 1")
	}
	if got := m.Core.Sql; got != "ALTER TABLE Foo ADD Bar int" {
		t.Errorf("Core.Sql = %q, want %q", got, "ALTER TABLE Foo ADD Bar int")
	}
	if got := m.Post.Sql; got != "SELECT 2" {
		t.Errorf("Post.Sql = %q, want %q", got, "SELECT 2")
	}
	if len(m.Depends) != 1 || m.Depends[0] != "Other" {
		t.Errorf("Depends = %v, want [Other]", m.Depends)
	}
}

func TestLoaderSkipsMigrationWithNoPath(t *testing.T) {
	m := &Migration{Name: "Missing"}
	l := NewLoader(identityPreprocessor, constantHasher)
	if err := l.Load(m); err != nil {
		t.Fatalf("Load on a missing-from-disk migration should be a no-op, got: %v", err)
	}
}

func TestAppendDependDeduplicatesCaseInsensitively(t *testing.T) {
	m := &Migration{Name: "M"}
	m.appendDepend("Foo")
	m.appendDepend("foo")
	m.appendDepend("Bar")

	if len(m.Depends) != 2 {
		t.Errorf("Depends = %v, want 2 entries", m.Depends)
	}
}

func TestDiscoverWalksMigrationsDirectoryInOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"_End", "Zulu", "_Begin", "Alpha"} {
		dir := filepath.Join(root, "Migrations", name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "_Main.sql"), []byte("SELECT 1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// A directory without _Main.sql must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "Migrations", "Incomplete"), 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{"_Begin", "Alpha", "Zulu", "_End"}
	if len(found) != len(want) {
		t.Fatalf("found %d migrations, want %d: %v", len(found), len(want), found)
	}
	for i, m := range found {
		if m.Name != want[i] {
			t.Errorf("position %d = %q, want %q", i, m.Name, want[i])
		}
	}
}

func TestDiscoverMissingMigrationsDirReturnsEmpty(t *testing.T) {
	root := t.TempDir()
	found, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("found = %v, want empty", found)
	}
}
