// Package audit records who did what to which resource. The audit trail is
// a write-only sink: nothing in this service reads it back.
package audit

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Entry is one audit record.
type Entry struct {
	UserID     string            `json:"user_id"`
	Action     string            `json:"action"`
	Resource   string            `json:"resource"`
	ResourceID string            `json:"resource_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Sink persists audit entries.
type Sink interface {
	WriteAudit(ctx context.Context, e *Entry) error
}

// Logger writes audit entries best-effort: Record returns the write error so
// the caller can log it, but a user-facing action must never fail because
// auditing did.
type Logger struct {
	sink   Sink
	logger log.Logger
	now    func() time.Time
}

// NewLogger creates an audit logger.
func NewLogger(sink Sink, logger log.Logger) *Logger {
	if logger == nil {
		logger = log.Nop()
	}
	return &Logger{sink: sink, logger: logger, now: time.Now}
}

// Record stamps and writes the entry. The returned error is informational;
// callers log it and continue.
func (l *Logger) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.UserID == "" {
		e.UserID = "system"
	}
	if err := l.sink.WriteAudit(ctx, &e); err != nil {
		l.logger.Error(ctx, err, "audit write failed",
			"action", e.Action,
			"resource", e.Resource,
			"resource_id", e.ResourceID,
		)
		return err
	}
	return nil
}
