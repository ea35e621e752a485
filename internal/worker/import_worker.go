package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"treemap/internal/core"
	"treemap/internal/services"
	"treemap/internal/source"
)

// TableWriter replaces the whole content of a table.
type TableWriter interface {
	ReplaceTable(ctx context.Context, table, origin string, fields []core.Field, rows []core.Row) error
}

// ImportWorker copies tables from a remote source (Google Sheets) into the
// local store and announces each imported table.
type ImportWorker struct {
	src         source.Reader
	dst         TableWriter
	publisher   services.ChangePublisher
	tables      []string
	concurrency int
	origin      string
}

// NewImportWorker creates a worker. An empty tables list imports every
// table the source can list. publisher may be nil.
func NewImportWorker(src source.Reader, dst TableWriter, publisher services.ChangePublisher, tables []string, concurrency int) *ImportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ImportWorker{
		src:         src,
		dst:         dst,
		publisher:   publisher,
		tables:      tables,
		concurrency: concurrency,
		origin:      "import",
	}
}

// ImportAll imports every configured table. A failing table does not stop
// the others; all failures are joined into the returned error.
func (w *ImportWorker) ImportAll(ctx context.Context) error {
	tables, err := w.tableNames(ctx)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		slog.WarnContext(ctx, "No tables to import")
		return nil
	}

	start := time.Now()
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, table := range tables {
		g.Go(func() error {
			if err := w.importTable(ctx, table); err != nil {
				slog.ErrorContext(ctx, "Failed to import table", "table", table, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("import %s: %w", table, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Import finished",
		"tables", len(tables),
		"failed", len(errs),
		"duration", time.Since(start))
	return errors.Join(errs...)
}

func (w *ImportWorker) tableNames(ctx context.Context) ([]string, error) {
	if len(w.tables) > 0 {
		return w.tables, nil
	}
	lister, ok := w.src.(source.TableLister)
	if !ok {
		return nil, errors.New("no tables configured and the source cannot list them")
	}
	tables, err := lister.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source tables: %w", err)
	}
	return tables, nil
}

func (w *ImportWorker) importTable(ctx context.Context, table string) error {
	fields, err := w.src.ListFields(ctx, table)
	if err != nil {
		return fmt.Errorf("list fields: %w", err)
	}
	records, err := w.src.ListRecords(ctx, table)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	rows := toRows(fields, records)
	if err := w.dst.ReplaceTable(ctx, table, w.origin, fields, rows); err != nil {
		return fmt.Errorf("replace table: %w", err)
	}

	if w.publisher != nil {
		if err := w.publisher.PublishRecordsChanged(ctx, table, w.origin); err != nil {
			// The data is imported; panels catch up when their cache expires
			slog.WarnContext(ctx, "Failed to publish records changed message", "table", table, "error", err)
		}
	}
	slog.InfoContext(ctx, "Table imported", "table", table, "fields", len(fields), "records", len(rows))
	return nil
}

func toRows(fields []core.Field, records []core.Record) []core.Row {
	rows := make([]core.Row, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if row, ok := r.(core.Row); ok {
			rows = append(rows, row)
			continue
		}
		cells := make(map[string]any, len(fields))
		for _, f := range fields {
			if v := r.CellValue(f.Name); v != nil {
				cells[f.Name] = v
			}
		}
		rows = append(rows, core.Row{RecordID: r.ID(), Cells: cells})
	}
	return rows
}

// Run imports immediately and then every interval until ctx is done.
func (w *ImportWorker) Run(ctx context.Context, interval time.Duration) error {
	slog.InfoContext(ctx, "Import worker started", "interval", interval, "concurrency", w.concurrency)

	if err := w.ImportAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Import failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Import worker stopped")
			return nil
		case <-ticker.C:
			if err := w.ImportAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Import failed", "error", err)
			}
		}
	}
}
