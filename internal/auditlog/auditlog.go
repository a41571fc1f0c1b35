package auditlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

// Log is append-only storage for acceptance records, keyed by job id.
// A lost acceptance record is a compliance defect, so every failure
// surfaces as a *PersistenceError instead of being swallowed.
type Log interface {
	// Append adds one entry to the job's ordered list. Every call
	// appends; dedup is the caller's job (the assignment engine
	// serializes accepts per job).
	Append(ctx context.Context, jobID string, entry models.AcceptanceLog) error
	// ListFor returns the job's entries oldest first. Empty slice,
	// never nil, when nothing has been recorded.
	ListFor(ctx context.Context, jobID string) ([]models.AcceptanceLog, error)
	// ListAll returns every job's entries, for the reporting engine.
	ListAll(ctx context.Context) (map[string][]models.AcceptanceLog, error)
}

// PersistenceError wraps a storage failure during an append or read.
type PersistenceError struct {
	Op    string
	JobID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("auditlog %s job=%s: %v", e.Op, e.JobID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewEntry stamps a fresh acceptance record. IDs are timestamp-derived,
// which is monotonic enough for append ordering within a job.
func NewEntry(user *models.User, c models.Coordinates, platform models.Platform) models.AcceptanceLog {
	now := time.Now().UTC()
	return models.AcceptanceLog{
		ID:          fmt.Sprintf("log_%d", now.UnixNano()),
		AcceptedAt:  now,
		AcceptedBy:  user,
		Coordinates: c,
		Platform:    platform,
	}
}

// MemoryLog keeps entries in process memory. Appends are read-modify-
// write safe under the store mutex, so two near-simultaneous accepts
// can never drop an entry via a last-write-wins list replacement.
type MemoryLog struct {
	mu      sync.RWMutex
	entries map[string][]models.AcceptanceLog
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]models.AcceptanceLog)}
}

func (m *MemoryLog) Append(ctx context.Context, jobID string, entry models.AcceptanceLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[jobID] = append(m.entries[jobID], entry)
	return nil
}

func (m *MemoryLog) ListFor(ctx context.Context, jobID string) ([]models.AcceptanceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.entries[jobID]
	out := make([]models.AcceptanceLog, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryLog) ListAll(ctx context.Context) (map[string][]models.AcceptanceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]models.AcceptanceLog, len(m.entries))
	for jobID, src := range m.entries {
		cp := make([]models.AcceptanceLog, len(src))
		copy(cp, src)
		out[jobID] = cp
	}
	return out, nil
}
