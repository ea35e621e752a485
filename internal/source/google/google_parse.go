package google

import (
	"fmt"
	"strings"

	"treemap/internal/core"
	"treemap/internal/source"
)

// parseValues converts a values matrix (as returned by the Sheets API) into
// fields and rows. The first row is the header; header cells may carry a
// type suffix ("Category:select"), otherwise the type is inferred from the
// data. Fully blank rows are skipped.
func parseValues(table string, values [][]any) ([]core.Field, []core.Row) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	fields := make([]core.Field, 0, len(headers))
	cols := make([]int, 0, len(headers))
	declared := make(map[int]bool)
	for i, h := range headers {
		name, typ, hasType := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f := core.Field{Name: name, Type: core.FieldText}
		if hasType {
			if ft, err := core.ParseFieldType(typ); err == nil {
				f.Type = ft
				declared[i] = true
			}
		}
		fields = append(fields, f)
		cols = append(cols, i)
	}

	for fi, col := range cols {
		if declared[col] {
			continue
		}
		fields[fi].Type = inferColumn(values[1:], col)
	}

	rows := make([]core.Row, 0, len(values)-1)
	for r := 1; r < len(values); r++ {
		cells := make(map[string]any, len(fields))
		for fi, col := range cols {
			if v := cellValue(fields[fi].Type, safeGet(values[r], col)); v != nil {
				cells[fields[fi].Name] = v
			}
		}
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, core.Row{RecordID: fmt.Sprintf("%s!A%d", table, r+1), Cells: cells})
	}
	return fields, rows
}

func inferColumn(rows [][]any, col int) core.FieldType {
	samples := make([]string, 0, len(rows))
	for _, row := range rows {
		switch v := safeGet(row, col).(type) {
		case nil:
		case float64:
			samples = append(samples, "0")
		case string:
			samples = append(samples, v)
		default:
			samples = append(samples, fmt.Sprint(v))
		}
	}
	return source.InferFieldType(samples)
}

func cellValue(t core.FieldType, v any) any {
	switch c := v.(type) {
	case nil:
		return nil
	case string:
		return source.TextCell(t, c)
	case float64:
		if t == core.FieldNumber {
			return c
		}
		return source.TextCell(t, core.FormatCell(c))
	default:
		return source.TextCell(t, core.FormatCell(c))
	}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []any, idx int) any {
	if idx < 0 || idx >= len(arr) {
		return nil
	}
	return arr[idx]
}
