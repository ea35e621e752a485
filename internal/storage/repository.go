package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"treemap/internal/core"
	"treemap/internal/source"

	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ source.RecordSource = (*SQLiteRepository)(nil)
	_ source.SchemaReader = (*SQLiteRepository)(nil)
	_ source.TableLister  = (*SQLiteRepository)(nil)
	_ source.RecordWriter = (*SQLiteRepository)(nil)
)

const (
	cellText   = "text"
	cellNumber = "number"
	cellTag    = "tag"
)

// SQLiteRepository stores arbitrary tables as fields, records and cells.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// the import worker and HTTP appends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTables returns table names in creation order.
func (r *SQLiteRepository) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM data_tables ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListFields(ctx context.Context, table string) ([]core.Field, error) {
	if err := r.ensureTable(ctx, table); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, type FROM fields WHERE table_name = ? ORDER BY position`, table)
	if err != nil {
		return nil, fmt.Errorf("list fields of %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Field
	for rows.Next() {
		var f core.Field
		var typ string
		if err := rows.Scan(&f.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		f.Type = core.FieldType(typ)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListRecords returns the table's records in insertion order.
func (r *SQLiteRepository) ListRecords(ctx context.Context, table string) ([]core.Record, error) {
	if err := r.ensureTable(ctx, table); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, c.field_name, c.kind, c.text_value, c.number_value, c.tag_name, c.tag_color
		FROM records r
		LEFT JOIN cells c ON c.record_id = r.id
		WHERE r.table_name = ?
		ORDER BY r.seq`, table)
	if err != nil {
		return nil, fmt.Errorf("list records of %s: %w", table, err)
	}
	defer rows.Close()

	var out []core.Record
	var cur *core.Row
	for rows.Next() {
		var (
			id                                   string
			field, kind, text, tagName, tagColor sql.NullString
			number                               sql.NullFloat64
		)
		if err := rows.Scan(&id, &field, &kind, &text, &number, &tagName, &tagColor); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if cur == nil || cur.RecordID != id {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &core.Row{RecordID: id, Cells: make(map[string]any)}
		}
		if !field.Valid {
			continue
		}
		switch kind.String {
		case cellNumber:
			if number.Valid {
				cur.Cells[field.String] = number.Float64
			}
		case cellTag:
			cur.Cells[field.String] = core.Tag{Name: tagName.String, Color: tagColor.String}
		default:
			cur.Cells[field.String] = text.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, nil
}

// AppendRecord coerces cells to the table's field types and inserts a new
// record with a generated id.
func (r *SQLiteRepository) AppendRecord(ctx context.Context, table string, cells map[string]any) (string, error) {
	fields, err := r.ListFields(ctx, table)
	if err != nil {
		return "", err
	}
	coerced, err := source.CoerceCells(fields, cells)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRecord(ctx, tx, table, core.Row{RecordID: id, Cells: coerced}); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE data_tables SET updated_at = CURRENT_TIMESTAMP WHERE name = ?`, table); err != nil {
		return "", fmt.Errorf("touch table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite", "table", table, "id", id, "cells", len(coerced))
	return id, nil
}

// ReplaceTable atomically swaps the schema and content of table, creating it
// when needed. Record ids are kept as given.
func (r *SQLiteRepository) ReplaceTable(ctx context.Context, table, origin string, fields []core.Field, rows []core.Row) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("field %q of %s: %w", f.Name, table, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM cells WHERE record_id IN (SELECT id FROM records WHERE table_name = ?)`,
		`DELETE FROM records WHERE table_name = ?`,
		`DELETE FROM fields WHERE table_name = ?`,
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s, table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO data_tables (name, source, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET source = excluded.source, updated_at = excluded.updated_at`,
		table, origin); err != nil {
		return fmt.Errorf("upsert table %s: %w", table, err)
	}
	for i, f := range fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fields (table_name, name, type, position) VALUES (?, ?, ?, ?)`,
			table, f.Name, string(f.Type), i); err != nil {
			return fmt.Errorf("insert field %s: %w", f.Name, err)
		}
	}
	for _, row := range rows {
		if err := insertRecord(ctx, tx, table, row); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	slog.InfoContext(ctx, "Table replaced in SQLite",
		"table", table,
		"source", origin,
		"fields", len(fields),
		"records", len(rows))
	return nil
}

func (r *SQLiteRepository) ensureTable(ctx context.Context, table string) error {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM data_tables WHERE name = ?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", source.ErrTableNotFound, table)
	}
	if err != nil {
		return fmt.Errorf("lookup table %s: %w", table, err)
	}
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, table string, row core.Row) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, table_name) VALUES (?, ?)`, row.RecordID, table); err != nil {
		return fmt.Errorf("insert record %s: %w", row.RecordID, err)
	}
	for field, v := range row.Cells {
		kind, text, number, tag, ok := encodeCell(v)
		if !ok {
			continue
		}
		var tagName, tagColor any
		if kind == cellTag {
			tagName, tagColor = tag.Name, tag.Color
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cells (record_id, field_name, kind, text_value, number_value, tag_name, tag_color)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.RecordID, field, kind, text, number, tagName, tagColor); err != nil {
			return fmt.Errorf("insert cell %s.%s: %w", row.RecordID, field, err)
		}
	}
	return nil
}

// encodeCell maps a cell value to its column layout. Nil cells are not stored.
func encodeCell(v any) (kind string, text, number any, tag core.Tag, ok bool) {
	switch c := v.(type) {
	case nil:
		return "", nil, nil, core.Tag{}, false
	case core.Tag:
		return cellTag, nil, nil, c, true
	case *core.Tag:
		if c == nil {
			return "", nil, nil, core.Tag{}, false
		}
		return cellTag, nil, nil, *c, true
	case string:
		return cellText, c, nil, core.Tag{}, true
	}
	if f, isNum := core.NumericValue(v); isNum {
		return cellNumber, nil, f, core.Tag{}, true
	}
	return cellText, core.FormatCell(v), nil, core.Tag{}, true
}
