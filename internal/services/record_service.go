package services

import (
	"context"
	"fmt"
	"log/slog"

	"treemap/internal/source"
)

// ChangePublisher announces record changes to other processes.
type ChangePublisher interface {
	PublishRecordsChanged(ctx context.Context, table, source string) error
}

// RecordService appends records and keeps every panel in sync.
type RecordService struct {
	writer      source.RecordWriter
	invalidator Invalidator
	publisher   ChangePublisher
	origin      string
}

// NewRecordService creates the service. writer may be nil for read-only
// backends; publisher may be nil when messaging is disabled.
func NewRecordService(writer source.RecordWriter, invalidator Invalidator, publisher ChangePublisher, origin string) *RecordService {
	return &RecordService{
		writer:      writer,
		invalidator: invalidator,
		publisher:   publisher,
		origin:      origin,
	}
}

// Writable reports whether the backend accepts appends.
func (s *RecordService) Writable() bool {
	return s.writer != nil
}

// Append writes the record, drops the table's cached records and notifies
// other processes. A failed notification is logged, not returned.
func (s *RecordService) Append(ctx context.Context, table string, cells map[string]any) (string, error) {
	if s.writer == nil {
		return "", ErrNotSupported
	}
	id, err := s.writer.AppendRecord(ctx, table, cells)
	if err != nil {
		return "", fmt.Errorf("append record: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(table)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping records changed message")
		return id, nil
	}
	if err := s.publisher.PublishRecordsChanged(ctx, table, s.origin); err != nil {
		// Don't fail the request, the record is stored
		slog.ErrorContext(ctx, "Failed to publish records changed message",
			"table", table, "id", id, "error", err)
	}
	return id, nil
}
