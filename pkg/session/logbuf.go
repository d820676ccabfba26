package session

import (
	"time"

	"github.com/gwillem/armlink/pkg/protocol"
)

// DefaultLogCapacity is the number of log entries retained.
const DefaultLogCapacity = 100

// LogEntry is one line of the operator log.
type LogEntry struct {
	ID       uint64
	Time     time.Time
	Message  string
	Severity protocol.Severity
}

// LogBuffer keeps the most recent entries, oldest first.
type LogBuffer struct {
	entries []LogEntry
	start   int
	size    int
	nextID  uint64
}

// NewLogBuffer creates a buffer holding at most capacity entries.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{entries: make([]LogEntry, capacity)}
}

// Append stores an entry, evicting the oldest when full, and returns it.
func (b *LogBuffer) Append(t time.Time, msg string, sev protocol.Severity) LogEntry {
	b.nextID++
	e := LogEntry{ID: b.nextID, Time: t, Message: msg, Severity: sev}

	capacity := len(b.entries)
	if b.size < capacity {
		b.entries[(b.start+b.size)%capacity] = e
		b.size++
	} else {
		b.entries[b.start] = e
		b.start = (b.start + 1) % capacity
	}
	return e
}

// Len returns the number of retained entries.
func (b *LogBuffer) Len() int {
	return b.size
}

// Entries returns a copy of the retained entries, oldest first.
func (b *LogBuffer) Entries() []LogEntry {
	out := make([]LogEntry, b.size)
	for i := range out {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out
}

// Clear removes every entry. IDs keep increasing.
func (b *LogBuffer) Clear() {
	clear(b.entries)
	b.start = 0
	b.size = 0
}
