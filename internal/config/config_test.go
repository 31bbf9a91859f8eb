package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProjectParsesManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqldeploy.toml")
	content := `
name = "Widgets"

[defaults]
max_error_count = 5
allow_core_phase = true

[[target]]
name = "prod"
servers = ["sql1", "sql2"]
database = "Widgets"
max_parallelism = 4
max_parallelism_per_target = 2

[seeds]
reference = "Seeds/Reference"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProject(path)
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}

	if p.Name != "Widgets" {
		t.Errorf("Name = %q, want Widgets", p.Name)
	}
	if p.Root != dir {
		t.Errorf("Root = %q, want %q (defaulted to manifest's directory)", p.Root, dir)
	}
	if !p.Defaults.AllowCorePhase || p.Defaults.MaxErrorCount != 5 {
		t.Errorf("Defaults = %+v, want AllowCorePhase=true MaxErrorCount=5", p.Defaults)
	}
	if len(p.Targets) != 1 || p.Targets[0].Name != "prod" || len(p.Targets[0].Servers) != 2 {
		t.Fatalf("Targets = %+v, want one target named prod with 2 servers", p.Targets)
	}
	if p.Targets[0].MaxParallelism != 4 || p.Targets[0].MaxParallelismPerTarget != 2 {
		t.Errorf("target parallelism = (%d, %d), want (4, 2)", p.Targets[0].MaxParallelism, p.Targets[0].MaxParallelismPerTarget)
	}
	if p.Seeds["reference"] != "Seeds/Reference" {
		t.Errorf("Seeds = %v, want reference -> Seeds/Reference", p.Seeds)
	}
}

func TestLoadProjectMissingFileReturnsError(t *testing.T) {
	if _, err := LoadProject(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected LoadProject to fail on a missing file")
	}
}

func TestGettersAreSafeBeforeInitialize(t *testing.T) {
	v = nil
	if GetInt("max-parallelism") != 0 {
		t.Error("expected GetInt to return 0 before Initialize")
	}
	if GetBool("what-if") != false {
		t.Error("expected GetBool to return false before Initialize")
	}
	if GetString("log-dir") != "" {
		t.Error("expected GetString to return empty before Initialize")
	}
}

func TestInitializeRegistersDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if GetInt("max-parallelism") != 0 {
		t.Errorf("default max-parallelism = %d, want 0", GetInt("max-parallelism"))
	}
	if GetBool("allow-core-phase") != false {
		t.Error("default allow-core-phase = true, want false")
	}
}
