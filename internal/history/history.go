// Package history keeps the append-only log of spoken turns for a session.
package history

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one spoken turn. Sequence matches the line's index in the script.
type Entry struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
}

// Log is an append-only, ordered list of entries. Entries are never mutated
// after they are appended.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty log.
func New() *Log {
	return &Log{}
}

// Append adds an entry. The entry's sequence must equal the current length
// of the log so that the log has no gaps and no duplicates.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.Sequence != len(l.entries) {
		return fmt.Errorf("history append out of order: got sequence %d, want %d", e.Sequence, len(l.entries))
	}
	l.entries = append(l.entries, e)
	return nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of all entries in order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Texts returns just the text of every entry, in order.
func (l *Log) Texts() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Text
	}
	return out
}

// ContextDescription renders the log as a transcript suitable for use as
// generation context.
func (l *Log) ContextDescription() string {
	return Describe(l.Entries())
}

// Describe renders entries as "Speaker: text" lines.
func Describe(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%s: %s\n", e.Speaker, e.Text))
	}
	return b.String()
}
