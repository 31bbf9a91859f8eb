// Package config resolves session options (spec.md §4.1) through a viper
// singleton: a ".sqldeploy/config.yaml" found in the working directory or
// one of its parents (else the user config directory), overridden by
// SQLDEPLOY_-prefixed environment variables. Command-line flags are not
// bound here. The TOML project manifest is read separately by LoadProject
// and is not merged into the viper settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. Should be called
// once at CLI startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			configPath := filepath.Join(dir, ".sqldeploy", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			configPath := filepath.Join(configDir, "sqldeploy", "config.yaml")
			if _, err := os.Stat(configPath); err == nil {
				v.SetConfigFile(configPath)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("SQLDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("max-parallelism", 0)
	v.SetDefault("max-parallelism-per-target", 0)
	v.SetDefault("max-error-count", 0)
	v.SetDefault("what-if", false)
	v.SetDefault("allow-core-phase", false)
	v.SetDefault("log-dir", "")

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}
	return nil
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// Project is the deployment project manifest read from a TOML file at the
// root of the migrations/seeds tree (spec.md §6.1 describes the directory
// layout this manifest sits above).
type Project struct {
	Name     string            `toml:"name"`
	Root     string            `toml:"root"`
	Targets  []ProjectTarget   `toml:"target"`
	Defaults ProjectDefaults   `toml:"defaults"`
	Seeds    map[string]string `toml:"seeds"`
}

// ProjectTarget is one named target group entry in the manifest.
type ProjectTarget struct {
	Name                    string   `toml:"name"`
	Servers                 []string `toml:"servers"`
	Database                string   `toml:"database"`
	MaxParallelism          int      `toml:"max_parallelism"`
	MaxParallelismPerTarget int      `toml:"max_parallelism_per_target"`
}

// ProjectDefaults holds session options applied unless a target group
// overrides them.
type ProjectDefaults struct {
	MaxErrorCount  int  `toml:"max_error_count"`
	AllowCorePhase bool `toml:"allow_core_phase"`
}

// LoadProject reads and parses a project manifest.
func LoadProject(path string) (*Project, error) {
	var p Project
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, fmt.Errorf("load project manifest %s: %w", path, err)
	}
	if p.Root == "" {
		p.Root = filepath.Dir(path)
	}
	return &p, nil
}
