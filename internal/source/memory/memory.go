package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"treemap/internal/core"
	"treemap/internal/source"
)

// Ensure interface conformance
var (
	_ source.RecordSource = (*Store)(nil)
	_ source.SchemaReader = (*Store)(nil)
	_ source.TableLister  = (*Store)(nil)
	_ source.RecordWriter = (*Store)(nil)
)

type table struct {
	fields []core.Field
	rows   []core.Row
}

type Store struct {
	mu     sync.Mutex
	dir    string
	tables map[string]*table
	order  []string
}

func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// NewFromDir loads every <table>.csv in dir. A missing directory yields an
// empty store.
func NewFromDir(dir string) (*Store, error) {
	s := New()
	s.dir = dir
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the seed directory, replacing all tables.
func (s *Store) Reload() error {
	if s.dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.csv"))
	if err != nil {
		return fmt.Errorf("list seed files: %w", err)
	}
	sort.Strings(paths)

	tables := make(map[string]*table, len(paths))
	order := make([]string, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		t, err := readCSV(p, name)
		if err != nil {
			return fmt.Errorf("load table %s: %w", name, err)
		}
		tables[name] = t
		order = append(order, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
	s.order = order
	return nil
}

// AddTable registers a table. Existing rows of a table with the same name
// are discarded.
func (s *Store) AddTable(name string, fields []core.Field, rows []core.Row) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("table %s: %w", name, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.order = append(s.order, name)
	}
	s.tables[name] = &table{
		fields: append([]core.Field(nil), fields...),
		rows:   append([]core.Row(nil), rows...),
	}
	return nil
}

// LoadCSV parses one CSV document into table name, replacing any table of
// that name.
func (s *Store) LoadCSV(name string, r io.Reader) error {
	t, err := parseCSV(r, name)
	if err != nil {
		return fmt.Errorf("load table %s: %w", name, err)
	}
	return s.AddTable(name, t.fields, t.rows)
}

// ListTables returns table names in load order.
func (s *Store) ListTables(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) ListFields(_ context.Context, name string) ([]core.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrTableNotFound, name)
	}
	return append([]core.Field(nil), t.fields...), nil
}

func (s *Store) ListRecords(_ context.Context, name string) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrTableNotFound, name)
	}
	out := make([]core.Record, len(t.rows))
	for i, r := range t.rows {
		out[i] = r
	}
	return out, nil
}

// AppendRecord stores a record and returns its generated id.
func (s *Store) AppendRecord(_ context.Context, name string, cells map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", source.ErrTableNotFound, name)
	}
	coerced, err := source.CoerceCells(t.fields, cells)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	t.rows = append(t.rows, core.NewRow(id, coerced))
	return id, nil
}

func readCSV(path, name string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f, name)
}

// parseCSV reads a header row followed by records. Header cells may carry a
// type suffix ("Amount:number"); otherwise the type is inferred.
func parseCSV(r io.Reader, name string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	fields := make([]core.Field, len(headers))
	declared := make([]bool, len(headers))
	for i, h := range headers {
		fieldName, typ, hasType := strings.Cut(strings.TrimSpace(h), ":")
		fields[i] = core.Field{Name: strings.TrimSpace(fieldName), Type: core.FieldText}
		if hasType {
			ft, err := core.ParseFieldType(typ)
			if err != nil {
				return nil, fmt.Errorf("column %d: %w", i+1, err)
			}
			fields[i].Type = ft
			declared[i] = true
		}
		if fields[i].Name == "" {
			return nil, fmt.Errorf("column %d: %w", i+1, core.ErrEmptyFieldName)
		}
	}

	var raw [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(raw)+2, err)
		}
		raw = append(raw, row)
	}

	for i := range fields {
		if declared[i] {
			continue
		}
		samples := make([]string, 0, len(raw))
		for _, row := range raw {
			if i < len(row) {
				samples = append(samples, row[i])
			}
		}
		fields[i].Type = source.InferFieldType(samples)
	}

	rows := make([]core.Row, 0, len(raw))
	for n, row := range raw {
		cells := make(map[string]any, len(fields))
		for i, f := range fields {
			if i >= len(row) {
				break
			}
			if v := source.TextCell(f.Type, row[i]); v != nil {
				cells[f.Name] = v
			}
		}
		rows = append(rows, core.Row{RecordID: fmt.Sprintf("%s:%d", name, n+1), Cells: cells})
	}
	return &table{fields: fields, rows: rows}, nil
}
