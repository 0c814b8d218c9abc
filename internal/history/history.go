// Package history records one audit entry per conversion request.
package history

import (
	"context"
	"sync"
	"time"
)

// Status is the outcome of a conversion.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DefaultLimit caps Recent when the caller passes no limit.
const DefaultLimit = 50

// Entry describes a finished conversion.
type Entry struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	Format      string    `json:"format"`
	Status      Status    `json:"status"`
	Stage       string    `json:"stage"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	InputBytes  int64     `json:"inputBytes"`
	OutputBytes int64     `json:"outputBytes"`
	DurationMS  int64     `json:"durationMs"`
	Subject     string    `json:"subject,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Recorder persists entries. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// NopRecorder discards entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }

func (NopRecorder) Recent(context.Context, int) ([]Entry, error) { return nil, nil }

// MemoryRecorder keeps the most recent entries in a ring of fixed size.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemoryRecorder keeps at most max entries.
func NewMemoryRecorder(max int) *MemoryRecorder {
	if max <= 0 {
		max = DefaultLimit
	}
	return &MemoryRecorder{max: max}
}

func (m *MemoryRecorder) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	if len(m.entries) > m.max {
		m.entries = m.entries[len(m.entries)-m.max:]
	}
	return nil
}

func (m *MemoryRecorder) Recent(_ context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
