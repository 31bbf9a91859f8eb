// Package console defines the trait the engine reports progress and
// problems through, resolving the "PowerShell host/console adapter"
// design note (spec.md §9): a narrow interface so the CLI layer (out of
// scope for this module) can plug in a real terminal adapter, a what-if
// variant, or — in tests — a recording fake, without the engine knowing
// which.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/sqldeploy/sqldeploy/internal/migration"
)

// Console is implemented by the CLI host. Real and what-if implementations
// are plug-in (spec.md §9).
type Console interface {
	CreateLog(name string) (Log, error)
	ReportStarting(target string)
	ReportApplying(target, what string)
	ReportApplied(target, what string)
	ReportProblem(target, message string)
}

// Log is a single per-(target, phase) or per-(target, seed) log sink
// (spec.md §6.3). Implementations must be safe for concurrent use: the
// seed applicator logs from all of its worker goroutines at once.
type Log interface {
	io.Closer
	Header(fields HeaderFields)
	Applying(name string, phase migration.Phase)
	Applied(name string, phase migration.Phase)

	// ApplyingModule and AppliedModule are the seed-module equivalents of
	// Applying/Applied, logged per worker as a seed's modules dequeue
	// (spec.md §4.6 step 4).
	ApplyingModule(name string, workerID int)
	AppliedModule(name string, workerID int)

	Problem(message string)
	Summary(message string)
}

// HeaderFields are the fields a per-target log file's header identifies
// (spec.md §6.3): "tool, host, CPU count, user, OS, runtime, process, and
// current phase/seed."
type HeaderFields struct {
	Tool      string
	Host      string
	CPUCount  int
	User      string
	OS        string
	Runtime   string
	ProcessID int
	Activity  string // e.g. "Pre" / "Core" / "Post" / seed name
}

func (f HeaderFields) String() string {
	return fmt.Sprintf(
		"%s on %s (cpu=%d user=%s os=%s runtime=%s pid=%d) — %s",
		f.Tool, f.Host, f.CPUCount, f.User, f.OS, f.Runtime, f.ProcessID, f.Activity,
	)
}

// fanoutLog writes each line to a WriteCloser under a mutex and discards
// writes made after Close.
type fanoutLog struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// NewLog wraps an io.WriteCloser (typically a *lumberjack.Logger; see
// internal/console/file.go) as a Log.
func NewLog(w io.WriteCloser) Log {
	return &fanoutLog{w: w}
}

func (l *fanoutLog) Header(f HeaderFields) {
	l.writeLine(f.String())
}

func (l *fanoutLog) Applying(name string, phase migration.Phase) {
	l.writeLine(fmt.Sprintf("Applying %s (%s)...", name, phase))
}

func (l *fanoutLog) Applied(name string, phase migration.Phase) {
	l.writeLine(fmt.Sprintf("Applied %s (%s)", name, phase))
}

func (l *fanoutLog) ApplyingModule(name string, workerID int) {
	l.writeLine(fmt.Sprintf("Applying module %s (worker %d)...", name, workerID))
}

func (l *fanoutLog) AppliedModule(name string, workerID int) {
	l.writeLine(fmt.Sprintf("Applied module %s (worker %d)", name, workerID))
}

func (l *fanoutLog) Problem(message string) {
	l.writeLine("PROBLEM: " + message)
}

func (l *fanoutLog) Summary(message string) {
	l.writeLine(message)
}

func (l *fanoutLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

func (l *fanoutLog) writeLine(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	fmt.Fprintln(l.w, s)
}
