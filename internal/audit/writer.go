package audit

import (
	"context"
	"errors"
	"log"
	"time"
)

// LogWriter is a Logger that prints entries to a standard logger. It is
// the fallback when no audit database is configured.
type LogWriter struct {
	logger *log.Logger
}

// NewLogWriter constructs a LogWriter.
func NewLogWriter(logger *log.Logger) *LogWriter {
	if logger == nil {
		return nil
	}
	return &LogWriter{logger: logger}
}

// Log prints one audit entry.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	if w == nil || w.logger == nil {
		return errors.New("audit writer: nil logger")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	w.logger.Printf("audit id=%s actor=%s role=%s action=%s resource=%s/%s ip=%s",
		entry.ID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID, entry.IP)
	return nil
}
