package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armlink/pkg/protocol"
)

func TestLogBuffer_Eviction(t *testing.T) {
	b := NewLogBuffer(DefaultLogCapacity)
	now := time.Now()
	const n = 250
	for i := 0; i < n; i++ {
		b.Append(now, fmt.Sprintf("entry %d", i), protocol.SeverityInfo)
	}

	entries := b.Entries()
	require.Len(t, entries, DefaultLogCapacity)
	assert.Equal(t, DefaultLogCapacity, b.Len())
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("entry %d", n-DefaultLogCapacity+i), e.Message)
	}
	assert.Equal(t, uint64(n), entries[len(entries)-1].ID)
}

func TestLogBuffer_PartialFill(t *testing.T) {
	b := NewLogBuffer(3)
	b.Append(time.Now(), "a", protocol.SeverityInfo)
	b.Append(time.Now(), "b", protocol.SeverityWarning)

	entries := b.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Message)
	assert.Equal(t, protocol.SeverityWarning, entries[1].Severity)
}

func TestLogBuffer_Clear(t *testing.T) {
	b := NewLogBuffer(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		b.Append(time.Now(), m, protocol.SeverityInfo)
	}
	b.Clear()
	assert.Empty(t, b.Entries())

	e := b.Append(time.Now(), "e", protocol.SeverityInfo)
	assert.Equal(t, uint64(5), e.ID)
	assert.Equal(t, []string{"e"}, messages(b.Entries()))
}

func TestLogBuffer_EntriesIsCopy(t *testing.T) {
	b := NewLogBuffer(2)
	b.Append(time.Now(), "a", protocol.SeverityInfo)
	got := b.Entries()
	got[0].Message = "changed"
	assert.Equal(t, "a", b.Entries()[0].Message)
}

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}
