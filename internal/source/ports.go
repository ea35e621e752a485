package source

import (
	"context"
	"errors"

	"treemap/internal/core"
)

// ErrTableNotFound is returned by adapters for unknown table names.
var ErrTableNotFound = errors.New("table not found")

// Ports for outbound adapters.
type (
	RecordSource interface {
		// ListRecords returns every record of the table in source order.
		ListRecords(ctx context.Context, table string) ([]core.Record, error)
	}

	SchemaReader interface {
		ListFields(ctx context.Context, table string) ([]core.Field, error)
	}

	TableLister interface {
		ListTables(ctx context.Context) ([]string, error)
	}

	// RecordWriter appends a record built from raw cell values and returns
	// its identifier.
	RecordWriter interface {
		AppendRecord(ctx context.Context, table string, cells map[string]any) (id string, err error)
	}

	// Reader is what the panel needs from a backend.
	Reader interface {
		RecordSource
		SchemaReader
	}
)

// FieldByName returns the field named name.
func FieldByName(fields []core.Field, name string) (core.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return core.Field{}, false
}

// CoerceCells converts raw input cells (typically decoded JSON) to the cell
// types the fields declare. Unknown fields are rejected.
func CoerceCells(fields []core.Field, in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for name, raw := range in {
		f, ok := FieldByName(fields, name)
		if !ok {
			return nil, &UnknownFieldError{Field: name}
		}
		out[name] = CoerceCell(f.Type, raw)
	}
	return out, nil
}

// CoerceCell converts one raw value to the representation used for t.
// Values that do not fit are kept as text so nothing is silently lost.
func CoerceCell(t core.FieldType, raw any) any {
	if raw == nil {
		return nil
	}
	switch t {
	case core.FieldNumber:
		if f, ok := core.NumericValue(raw); ok {
			return f
		}
		if s, ok := raw.(string); ok {
			if f, ok := core.ParseNumber(s); ok {
				return f
			}
			if s == "" {
				return nil
			}
		}
		return core.FormatCell(raw)
	case core.FieldSelect:
		switch v := raw.(type) {
		case core.Tag:
			return v
		case map[string]any:
			name, _ := v["name"].(string)
			color, _ := v["color"].(string)
			if name == "" {
				return nil
			}
			return core.Tag{Name: name, Color: color}
		case string:
			return ParseTag(v)
		}
		return core.FormatCell(raw)
	default:
		s := core.FormatCell(raw)
		if s == "" {
			return nil
		}
		return s
	}
}

// UnknownFieldError reports a cell addressed to a field the table lacks.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return "unknown field " + `"` + e.Field + `"`
}
