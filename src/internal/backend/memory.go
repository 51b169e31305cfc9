// FILE: src/internal/backend/memory.go
package backend

import (
	"fmt"
	"io"
	"sync"

	"emulog/src/internal/core"
	"emulog/src/internal/format"
)

// DefaultMemoryCapacity is used when a memory backend is created without a capacity
const DefaultMemoryCapacity = 256

// Memory keeps the most recent entries in a fixed size ring. Once full, the
// oldest entry is overwritten.
type Memory struct {
	Base

	mu        sync.Mutex
	ring      []core.LogEntry
	next      int
	full      bool
	formatter format.Formatter
	flushes   int
	disposed  bool
}

// NewMemory creates a ring buffer backend. The formatter is only used by
// WriteTo and may be nil when entries are read back directly.
func NewMemory(capacity int, level core.Level, formatter format.Formatter) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	m := &Memory{
		ring:      make([]core.LogEntry, capacity),
		formatter: formatter,
	}
	m.init(level, true)
	return m
}

func (m *Memory) Accept(entry core.LogEntry) {
	if !m.Allows(entry) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return
	}
	m.ring[m.next] = entry
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
}

// Len returns the number of retained entries
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lenLocked()
}

func (m *Memory) lenLocked() int {
	if m.full {
		return len(m.ring)
	}
	return m.next
}

// Entries returns a copy of every retained entry, oldest first
func (m *Memory) Entries() []core.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tailLocked(m.lenLocked())
}

// Tail returns up to n of the most recent entries, oldest first
func (m *Memory) Tail(n int) []core.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tailLocked(n)
}

func (m *Memory) tailLocked(n int) []core.LogEntry {
	// cap number to the number of entries
	n = min(max(n, 0), m.lenLocked())

	out := make([]core.LogEntry, n)
	start := m.next - n
	if start < 0 {
		start += len(m.ring)
	}
	for i := range n {
		out[i] = m.ring[(start+i)%len(m.ring)]
	}
	return out
}

// Clear drops every retained entry
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.ring)
	m.next = 0
	m.full = false
}

// WriteTo renders the retained entries through the formatter
func (m *Memory) WriteTo(w io.Writer) (int64, error) {
	if m.formatter == nil {
		return 0, fmt.Errorf("memory backend has no formatter")
	}

	var total int64
	for _, e := range m.Entries() {
		b, err := m.formatter.Format(e)
		if err != nil {
			return total, err
		}
		n, err := w.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flush only counts invocations; the ring has nothing to persist
func (m *Memory) Flush() {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
}

// Flushes returns how many times Flush was called
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Dispose stops accepting entries; retained entries stay readable
func (m *Memory) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
}
