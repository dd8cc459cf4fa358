package registry

import (
	"sync"
	"time"
)

// Direction of a call relative to the platform.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status of a call record.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Role of a transcript entry speaker.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleAgent  Role = "agent"
)

// TranscriptEntry is immutable once created.
type TranscriptEntry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// CallRecord summarizes one call. Exactly one record exists per call
// ID, created at session start and finalized exactly once.
type CallRecord struct {
	CallID     string    `json:"call_id"`
	Direction  Direction `json:"direction"`
	FromNumber string    `json:"from_number,omitempty"`
	ToNumber   string    `json:"to_number,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time,omitempty"`
	Status     Status    `json:"status"`
}

// Registry is the only cross-session shared state: append/update-only
// call records and transcripts, keyed by call ID.
type Registry struct {
	mu          sync.Mutex
	records     map[string]*CallRecord
	order       []string
	transcripts map[string][]TranscriptEntry
}

func New() *Registry {
	return &Registry{
		records:     make(map[string]*CallRecord),
		transcripts: make(map[string][]TranscriptEntry),
	}
}

// StartCall creates the in-progress record for a new session. A
// duplicate call ID keeps the original record.
func (r *Registry) StartCall(callID string, direction Direction, from, to string, startedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[callID]; exists {
		return
	}
	r.records[callID] = &CallRecord{
		CallID:     callID,
		Direction:  direction,
		FromNumber: from,
		ToNumber:   to,
		StartTime:  startedAt,
		Status:     StatusInProgress,
	}
	r.order = append(r.order, callID)
}

// FinalizeCall closes the record. Idempotent: only the first
// finalization sets the end time and status.
func (r *Registry) FinalizeCall(callID string, endedAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[callID]
	if !ok || rec.Status != StatusInProgress {
		return false
	}
	rec.EndTime = endedAt
	rec.Status = StatusCompleted
	return true
}

// AppendTranscript records one immutable transcript entry.
func (r *Registry) AppendTranscript(callID string, entry TranscriptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts[callID] = append(r.transcripts[callID], entry)
}

// History returns all call records in creation order.
func (r *Registry) History() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.records[id])
	}
	return out
}

// Transcript returns the entries recorded for one call.
func (r *Registry) Transcript(callID string) []TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.transcripts[callID]
	out := make([]TranscriptEntry, len(entries))
	copy(out, entries)
	return out
}

// Lookup returns a copy of one call record.
func (r *Registry) Lookup(callID string) (CallRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[callID]
	if !ok {
		return CallRecord{}, false
	}
	return *rec, true
}
