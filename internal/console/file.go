package console

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

// FileOptions configures the rotating per-target log writer backing every
// Log produced by a FileConsole (spec.md §6.3).
type FileOptions struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o FileOptions) withDefaults() FileOptions {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 50
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 5
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 30
	}
	return o
}

// MigrationLogName renders "<server>.<database>.<phaseIndex>_<phaseName>.log"
// (spec.md §6.3).
func MigrationLogName(server, database string, phase migration.Phase) string {
	return fmt.Sprintf("%s.%s.%d_%s.log", server, database, phase.Index(), phase)
}

// SeedLogName renders "<server>.<database>.<seedName>.log" (spec.md §6.3).
func SeedLogName(server, database, seedName string) string {
	return fmt.Sprintf("%s.%s.%s.log", server, database, seedName)
}

// FileConsole is the real Console implementation: progress goes to an
// io.Writer (normally os.Stdout/os.Stderr) and each CreateLog call opens a
// lumberjack-backed rotating file under Dir.
type FileConsole struct {
	Options FileOptions
	Stdout  *os.File
	Stderr  *os.File
}

// NewFileConsole constructs a FileConsole writing progress to stdout/
// stderr and logs under opts.Dir.
func NewFileConsole(opts FileOptions) *FileConsole {
	return &FileConsole{
		Options: opts.withDefaults(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

func (c *FileConsole) CreateLog(name string) (Log, error) {
	if err := os.MkdirAll(c.Options.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", c.Options.Dir, err)
	}
	lj := &lumberjack.Logger{
		Filename:   filepath.Join(c.Options.Dir, name),
		MaxSize:    c.Options.MaxSizeMB,
		MaxBackups: c.Options.MaxBackups,
		MaxAge:     c.Options.MaxAgeDays,
	}
	return NewLog(lj), nil
}

func (c *FileConsole) ReportStarting(target string) {
	fmt.Fprintf(c.Stdout, "Starting %s\n", target)
}

func (c *FileConsole) ReportApplying(target, what string) {
	fmt.Fprintf(c.Stdout, "%s: applying %s\n", target, what)
}

func (c *FileConsole) ReportApplied(target, what string) {
	fmt.Fprintf(c.Stdout, "%s: applied %s\n", target, what)
}

func (c *FileConsole) ReportProblem(target, message string) {
	fmt.Fprintf(c.Stderr, "%s: PROBLEM: %s\n", target, message)
}

// Header builds the HeaderFields shared by every log file this process
// writes (spec.md §6.3).
func Header(tool, activity string) HeaderFields {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	host, _ := os.Hostname()
	return HeaderFields{
		Tool:      tool,
		Host:      host,
		CPUCount:  runtime.NumCPU(),
		User:      user,
		OS:        runtime.GOOS,
		Runtime:   runtime.Version(),
		ProcessID: os.Getpid(),
		Activity:  activity,
	}
}
