package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldSelect FieldType = "select"
)

const (
	// DefaultLabel names leaves whose label cell is empty.
	DefaultLabel = "Unnamed"
	// DefaultGroup names the branch collecting records without a group cell.
	DefaultGroup = "Ungrouped"
)

type (
	FieldType string

	// Field describes one column of a table.
	Field struct {
		Name string    `json:"name"`
		Type FieldType `json:"type"`
	}

	// Tag is a structured select value: a name with an optional colour token.
	Tag struct {
		Name  string `json:"name"`
		Color string `json:"color,omitempty"`
	}

	// Record is a single row exposed by a record source.
	Record interface {
		ID() string
		// CellValue returns the raw cell value, or nil when the cell is empty.
		CellValue(field string) any
		// CellValueAsString returns the cell rendered as text, "" when empty.
		CellValueAsString(field string) string
	}

	// Row is the concrete Record used by every adapter.
	Row struct {
		RecordID string
		Cells    map[string]any
	}

	// FieldSelection is the user's choice of fields for the chart.
	// Empty names mean "not selected".
	FieldSelection struct {
		Label   string
		Value   string
		GroupBy string
		Title   string
	}

	// TreeNode is a node of the treemap tree. Leaves carry Value, branches
	// carry Children.
	TreeNode struct {
		ID       string
		Value    *float64
		Color    string
		Children []TreeNode
	}
)

var (
	ErrEmptyFieldName   = errors.New("empty field name")
	ErrInvalidFieldType = errors.New("invalid field type")
)

func (t FieldType) Validate() error {
	switch t {
	case FieldText, FieldNumber, FieldSelect:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFieldType, string(t))
	}
}

// ParseFieldType maps a loose type name to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return FieldText, nil
	case "number", "numeric", "currency":
		return FieldNumber, nil
	case "select", "tag", "category":
		return FieldSelect, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFieldType, s)
	}
}

func (f Field) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyFieldName
	}
	return f.Type.Validate()
}

// NewRow builds a Row, copying cells so later writes to the map do not leak in.
func NewRow(id string, cells map[string]any) Row {
	cp := make(map[string]any, len(cells))
	for k, v := range cells {
		cp[k] = v
	}
	return Row{RecordID: id, Cells: cp}
}

func (r Row) ID() string { return r.RecordID }

func (r Row) CellValue(field string) any {
	if r.Cells == nil {
		return nil
	}
	return r.Cells[field]
}

func (r Row) CellValueAsString(field string) string {
	return FormatCell(r.CellValue(field))
}

// FormatCell renders a cell value as display text.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case Tag:
		return c.Name
	case *Tag:
		if c == nil {
			return ""
		}
		return c.Name
	case bool:
		return strconv.FormatBool(c)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(c), 'f', -1, 32)
	}
	if f, ok := NumericValue(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// IsSet reports whether both required fields have been selected.
func (s FieldSelection) IsSet() bool {
	return s.Label != "" && s.Value != ""
}

// Leaf builds a leaf node.
func Leaf(id string, value float64) TreeNode {
	return TreeNode{ID: id, Value: &value}
}

// IsLeaf reports whether the node carries a value instead of children.
func (n TreeNode) IsLeaf() bool {
	return n.Children == nil && n.Value != nil
}

// MarshalJSON emits "children" whenever the slice is non-nil, so an empty
// root still serialises as {"id":..., "children":[]}.
func (n TreeNode) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID       string      `json:"id"`
		Value    *float64    `json:"value,omitempty"`
		Color    string      `json:"color,omitempty"`
		Children *[]TreeNode `json:"children,omitempty"`
	}
	out := wire{ID: n.ID, Value: n.Value, Color: n.Color}
	if n.Children != nil {
		children := n.Children
		out.Children = &children
	}
	return json.Marshal(out)
}

func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var in struct {
		ID       string      `json:"id"`
		Value    *float64    `json:"value"`
		Color    string      `json:"color"`
		Children *[]TreeNode `json:"children"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*n = TreeNode{ID: in.ID, Value: in.Value, Color: in.Color}
	if in.Children != nil {
		n.Children = *in.Children
		if n.Children == nil {
			n.Children = []TreeNode{}
		}
	}
	return nil
}
