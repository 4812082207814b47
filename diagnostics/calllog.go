// Package diagnostics keeps a bounded, in-memory record of recent API calls.
// It is best-effort history for debugging only: entries are dropped oldest
// first when the buffer is full and the whole thing is lost on restart.
package diagnostics

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept before eviction starts.
const DefaultCapacity = 100

// CallEntry describes one handled API request.
type CallEntry struct {
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
}

// CallLog is a fixed-capacity ring buffer of CallEntry values. Safe for
// concurrent use.
type CallLog struct {
	mu       sync.Mutex
	entries  []CallEntry
	start    int // index of the oldest entry
	size     int
	capacity int
}

// NewCallLog creates a call log holding at most capacity entries. A
// non-positive capacity falls back to DefaultCapacity.
func NewCallLog(capacity int) *CallLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CallLog{
		entries:  make([]CallEntry, capacity),
		capacity: capacity,
	}
}

// Record appends an entry, evicting the oldest one if the buffer is full.
func (cl *CallLog) Record(entry CallEntry) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.size < cl.capacity {
		cl.entries[(cl.start+cl.size)%cl.capacity] = entry
		cl.size++
		return
	}
	cl.entries[cl.start] = entry
	cl.start = (cl.start + 1) % cl.capacity
}

// Snapshot returns the current entries, oldest first.
func (cl *CallLog) Snapshot() []CallEntry {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	out := make([]CallEntry, cl.size)
	for i := 0; i < cl.size; i++ {
		out[i] = cl.entries[(cl.start+i)%cl.capacity]
	}
	return out
}

// Len returns the number of entries currently held.
func (cl *CallLog) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.size
}
