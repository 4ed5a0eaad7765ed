// Package runlog captures a run's console transcript and turns unhandled
// panics into logged failures with full call-stack context, so a failed run
// leaves a diagnosable transcript instead of crashing the host process.
package runlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
)

// Logf is the package-level diagnostic logger, defaulting to log.Printf.
// A Transcript redirects it; tests may replace or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Transcript tees log output to stderr and to console.txt in the run's
// output directory.
type Transcript struct {
	file   *os.File
	logger *log.Logger
}

// NewTranscript creates the output directory if needed, opens console.txt
// inside it and points the package logger at both it and stderr.
func NewTranscript(outputDir string) (*Transcript, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("runlog: create output dir: %w", err)
	}
	path := filepath.Join(outputDir, "console.txt")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("runlog: create transcript: %w", err)
	}
	tr := &Transcript{
		file:   f,
		logger: log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags),
	}
	SetLogger(tr.logger.Printf)
	return tr, nil
}

// Path returns the transcript file location.
func (tr *Transcript) Path() string { return tr.file.Name() }

// Close flushes and closes the transcript and restores the default logger.
func (tr *Transcript) Close() error {
	SetLogger(log.Printf)
	return tr.file.Close()
}

// Run executes one named pipeline stage. A returned error is logged with
// its stage name; a panic is recovered, logged with the stage name and the
// full stack trace, and converted into an error. Either way the run
// terminates in a controlled fashion rather than crashing the process.
func Run(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			Logf("FATAL in %s: %v", name, r)
			Logf("stack trace:\n%s", debug.Stack())
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	Logf("stage %s: starting", name)
	if err = fn(); err != nil {
		Logf("stage %s: failed: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	Logf("stage %s: done", name)
	return nil
}
