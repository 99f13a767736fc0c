// Package debuglog keeps a bounded in-memory record of recoverable
// engine failures. Nothing here is fatal to the host: a locator miss
// or a failed dispatch degrades to "this one operation did not
// complete" and lands here for later inspection.
package debuglog

import (
	"log"
	"sync"
	"time"
)

// Failure kinds.
const (
	LocatorMiss        = "locator_miss"
	SynthesisFailure   = "synthesis_failure"
	PersistenceFailure = "persistence_failure"
	MalformedInput     = "malformed_input"
)

// Entry is one recorded failure.
type Entry struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Target  string    `json:"target,omitempty"`
	Details string    `json:"details,omitempty"`
}

// Log is a fixed-capacity ring of failure entries. Safe for
// concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

const defaultCap = 200

// New returns a log keeping at most capacity entries; capacity <= 0
// uses the default.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = defaultCap
	}
	return &Log{cap: capacity}
}

// Add records a failure and echoes it to the process log.
func (l *Log) Add(kind, target, details string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		Time:    time.Now(),
		Kind:    kind,
		Target:  target,
		Details: details,
	})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
	log.Printf("[%s] target=%q %s", kind, target, details)
}

// Entries returns a copy of the recorded failures, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Clear drops all recorded failures.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
