package services

import (
	"context"
	"errors"
	"log/slog"

	"treemap/internal/amqp"
)

// Reloader is a backend that can re-read its data, such as the CSV store.
type Reloader interface {
	Reload() error
}

// ChangeProcessor reacts to record changes announced by other processes
// and to file changes on disk.
type ChangeProcessor struct {
	invalidator Invalidator
	reloader    Reloader
	propsReload func() error
}

// NewChangeProcessor creates a processor. reloader and propsReload may be nil.
func NewChangeProcessor(invalidator Invalidator, reloader Reloader, propsReload func() error) *ChangeProcessor {
	return &ChangeProcessor{
		invalidator: invalidator,
		reloader:    reloader,
		propsReload: propsReload,
	}
}

// HandleRecordsChanged is the AMQP handler. Only cached records are
// dropped; the backend itself is shared or owned by the sender.
func (p *ChangeProcessor) HandleRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error {
	slog.InfoContext(ctx, "Records changed",
		"table", msg.Table,
		"source", msg.Source,
		"timestamp", msg.Timestamp)

	if msg.Table == "" && msg.Source == "" {
		return errors.New("records changed message without table or source")
	}
	p.invalidator.Invalidate(msg.Table)
	return nil
}

// DataChanged reloads the backend after its files changed.
func (p *ChangeProcessor) DataChanged(ctx context.Context) {
	if p.reloader != nil {
		if err := p.reloader.Reload(); err != nil {
			slog.ErrorContext(ctx, "Failed to reload data", "error", err)
			return
		}
	}
	p.invalidator.Invalidate("")
	slog.InfoContext(ctx, "Data reloaded from disk")
}

// PropertiesChanged re-reads the properties file. A decode error is kept by
// the provider and shown on the panel.
func (p *ChangeProcessor) PropertiesChanged(ctx context.Context) {
	if p.propsReload == nil {
		return
	}
	if err := p.propsReload(); err != nil {
		slog.WarnContext(ctx, "Properties reloaded with errors", "error", err)
		return
	}
	slog.InfoContext(ctx, "Properties reloaded")
}
