// Package audit records data-changing operations.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event names emitted by the engine.
const (
	EventRowInserted      = "row_inserted"
	EventCellUpdated      = "cell_updated"
	EventCascadeNullified = "cascade_nullified"
	EventRowDeleted       = "row_deleted"
	EventTableCleared     = "table_cleared"
	EventTableTruncated   = "table_truncated"
)

// Severity grades an event for downstream filtering.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityOf returns the severity of a known event; unknown events are medium.
func SeverityOf(event string) Severity {
	switch event {
	case EventRowInserted:
		return SeverityLow
	case EventRowDeleted, EventCascadeNullified:
		return SeverityHigh
	case EventTableCleared, EventTableTruncated:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEntry stamps event and message with a fresh ID and the current time.
func NewEntry(event, message string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Event:     event,
		Severity:  SeverityOf(event),
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Forwarder ships entries somewhere other than the log.
type Forwarder interface {
	Forward(ctx context.Context, e Entry) error
}

// Logger writes entries to a zerolog logger and hands them to forwarders.
// Forwarding failures are logged and never returned: auditing is
// fire-and-forget for the caller.
type Logger struct {
	logger     zerolog.Logger
	forwarders []Forwarder
}

// NewLogger creates a Logger.
func NewLogger(logger zerolog.Logger, forwarders ...Forwarder) *Logger {
	return &Logger{logger: logger, forwarders: forwarders}
}

// Log records event with message.
func (l *Logger) Log(ctx context.Context, event, message string) {
	e := NewEntry(event, message)
	l.logger.Info().
		Bool("audit", true).
		Str("audit_id", e.ID).
		Str("event", e.Event).
		Str("severity", string(e.Severity)).
		Msg(e.Message)
	for _, f := range l.forwarders {
		if err := f.Forward(ctx, e); err != nil {
			l.logger.Warn().Err(err).Str("audit_id", e.ID).Msg("audit forward failed")
		}
	}
}

// Recorder keeps entries in memory. Useful for embedding callers that
// render recent activity, and for tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Log appends an entry.
func (r *Recorder) Log(_ context.Context, event, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, NewEntry(event, message))
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Events returns the event names in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Event
	}
	return out
}

// Reset discards recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
