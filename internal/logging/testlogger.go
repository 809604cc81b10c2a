package logging

import (
	"fmt"
	"strings"
	"sync"
)

// TestLogger captures log calls in memory so tests can assert on what was
// logged. Warnings and errors are mirrored to stdout so unexpected failures
// stay visible in -v runs; debug and info only when verbose.
type TestLogger struct {
	verbose bool

	mu      sync.Mutex
	entries []TestEntry
}

// TestEntry is one captured log call.
type TestEntry struct {
	Level  string
	Msg    string
	Fields []Field
}

// NewTestLogger creates a capturing logger; verbose also mirrors debug and
// info lines to stdout.
func NewTestLogger(verbose bool) *TestLogger {
	return &TestLogger{verbose: verbose}
}

func (tl *TestLogger) record(level, msg string, mirror bool, fields []Field) {
	tl.mu.Lock()
	tl.entries = append(tl.entries, TestEntry{Level: level, Msg: msg, Fields: fields})
	tl.mu.Unlock()
	if mirror {
		fmt.Printf("[%s] %s %v\n", strings.ToUpper(level), msg, fields)
	}
}

func (tl *TestLogger) Debug(msg string, fields ...Field) {
	tl.record("debug", msg, tl.verbose, fields)
}

func (tl *TestLogger) Info(msg string, fields ...Field) {
	tl.record("info", msg, tl.verbose, fields)
}

func (tl *TestLogger) Warn(msg string, fields ...Field) {
	tl.record("warn", msg, true, fields)
}

func (tl *TestLogger) Error(msg string, fields ...Field) {
	tl.record("error", msg, true, fields)
}

// Entries returns a copy of every entry captured so far.
func (tl *TestLogger) Entries() []TestEntry {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]TestEntry(nil), tl.entries...)
}

// CountLevel returns how many entries were logged at the given level.
func (tl *TestLogger) CountLevel(level string) int {
	n := 0
	for _, e := range tl.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (tl *TestLogger) With(fields ...Field) Logger {
	return tl
}
