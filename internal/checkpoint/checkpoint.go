// Package checkpoint provides the injected sink for periodic resolution
// snapshots. Writes are best-effort: a failed write must never abort a
// resolution.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gotrs-io/mailseek/internal/models"
)

// Snapshot is one JSON-serializable progress record.
type Snapshot struct {
	RunID                 string           `json:"run_id"`
	Partial               bool             `json:"partial"`
	Phase                 string           `json:"phase"`
	GeneratedAt           time.Time        `json:"generated_at"`
	Found                 bool             `json:"found"`
	Subject               string           `json:"subject"`
	SenderFilter          string           `json:"sender_filter,omitempty"`
	TargetReceivedAtLocal string           `json:"target_received_at_local"`
	TargetReceivedOnLocal string           `json:"target_received_on_local"`
	TimeMatchMode         string           `json:"time_match_mode"`
	Attempts              []models.Attempt `json:"attempts"`
	CandidateCount        int              `json:"candidate_count"`
	Warnings              []string         `json:"warnings"`
	Extra                 map[string]any   `json:"extra,omitempty"`
}

// Sink accepts snapshots. Implementations must tolerate failure silently.
type Sink interface {
	Emit(snapshot Snapshot)
}

// Nop discards every snapshot.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(Snapshot) {}

// FileSink rewrites a single JSON file with the latest snapshot.
type FileSink struct {
	path string
}

// NewFileSink returns a sink that persists snapshots to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Emit implements Sink. Errors are swallowed.
func (s *FileSink) Emit(snapshot Snapshot) {
	if s == nil || s.path == "" {
		return
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(s.path, append(payload, '\n'), 0o644)
}

// Remove deletes the snapshot file, typically after the final result has
// been written.
func (s *FileSink) Remove() {
	if s == nil || s.path == "" {
		return
	}
	_ = os.Remove(s.path)
}

// MemorySink retains snapshots in memory for tests and in-process
// observers.
type MemorySink struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

// Emit implements Sink.
func (s *MemorySink) Emit(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
}

// Snapshots returns a copy of everything emitted so far.
func (s *MemorySink) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

// Phases returns the emitted phase names in order.
func (s *MemorySink) Phases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	phases := make([]string, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		phases = append(phases, snap.Phase)
	}
	return phases
}
