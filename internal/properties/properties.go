// Package properties loads the persisted field selection of the treemap
// panel and validates it against a table schema.
package properties

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"treemap/internal/core"
	"treemap/internal/source"
)

// DefaultTitle is used for the root node when no title is configured.
const DefaultTitle = "Treemap"

var (
	ErrUnknownField      = errors.New("unknown field")
	ErrValueNotNumeric   = errors.New("value field is not numeric")
	ErrUnsupportedFormat = errors.New("unsupported properties format")
)

// Properties is the user's panel configuration. Empty strings mean unset.
type Properties struct {
	Table        string `toml:"table" yaml:"table" json:"table"`
	LabelField   string `toml:"label_field" yaml:"label_field" json:"labelField"`
	ValueField   string `toml:"value_field" yaml:"value_field" json:"valueField"`
	GroupByField string `toml:"group_by_field" yaml:"group_by_field" json:"groupByField,omitempty"`
	Title        string `toml:"title" yaml:"title" json:"title,omitempty"`
}

// Provider returns the current properties.
type Provider interface {
	Properties(ctx context.Context) (Properties, error)
}

// Overlay returns p with every non-empty field of o applied on top.
func (p Properties) Overlay(o Properties) Properties {
	if o.Table != "" {
		p.Table = o.Table
	}
	if o.LabelField != "" {
		p.LabelField = o.LabelField
	}
	if o.ValueField != "" {
		p.ValueField = o.ValueField
	}
	if o.GroupByField != "" {
		p.GroupByField = o.GroupByField
	}
	if o.Title != "" {
		p.Title = o.Title
	}
	return p
}

// RootTitle is the configured title or DefaultTitle.
func (p Properties) RootTitle() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// Resolve checks the named fields against the table schema and returns the
// selection for the aggregator. Unset label or value fields are not errors;
// the panel reports them as incomplete configuration.
func Resolve(p Properties, fields []core.Field) (core.FieldSelection, error) {
	sel := core.FieldSelection{Title: p.RootTitle()}
	var errs []error

	check := func(name string) (core.Field, bool) {
		if name == "" {
			return core.Field{}, false
		}
		f, ok := source.FieldByName(fields, name)
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q in table %q", ErrUnknownField, name, p.Table))
			return core.Field{}, false
		}
		return f, true
	}

	if f, ok := check(p.LabelField); ok {
		sel.Label = f.Name
	}
	if f, ok := check(p.ValueField); ok {
		if f.Type != core.FieldNumber {
			errs = append(errs, fmt.Errorf("%w: %q has type %s", ErrValueNotNumeric, f.Name, f.Type))
		} else {
			sel.Value = f.Name
		}
	}
	if f, ok := check(p.GroupByField); ok {
		sel.GroupBy = f.Name
	}

	if len(errs) > 0 {
		return core.FieldSelection{}, errors.Join(errs...)
	}
	return sel, nil
}

// Decode parses properties in the given format ("toml", "yaml" or "yml").
func Decode(data []byte, format string) (Properties, error) {
	var p Properties
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Properties{}, fmt.Errorf("decode toml: %w", err)
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Properties{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return Properties{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p.trimmed(), nil
}

func (p Properties) trimmed() Properties {
	p.Table = strings.TrimSpace(p.Table)
	p.LabelField = strings.TrimSpace(p.LabelField)
	p.ValueField = strings.TrimSpace(p.ValueField)
	p.GroupByField = strings.TrimSpace(p.GroupByField)
	p.Title = strings.TrimSpace(p.Title)
	return p
}

// LoadFile reads properties from path. A missing file yields empty
// properties, not an error.
func LoadFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Properties{}, nil
	}
	if err != nil {
		return Properties{}, fmt.Errorf("read properties file: %w", err)
	}
	return Decode(data, filepath.Ext(path))
}

// FileProvider serves properties from a file, parsing it once and again
// after each Reload.
type FileProvider struct {
	path string

	mu     sync.RWMutex
	loaded bool
	props  Properties
	err    error
}

var _ Provider = (*FileProvider)(nil)

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Path() string { return p.path }

func (p *FileProvider) Properties(_ context.Context) (Properties, error) {
	p.mu.RLock()
	if p.loaded {
		defer p.mu.RUnlock()
		return p.props, p.err
	}
	p.mu.RUnlock()
	return p.Reload()
}

// Reload re-reads the file and returns the new result.
func (p *FileProvider) Reload() (Properties, error) {
	props, err := LoadFile(p.path)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	p.props, p.err = props, err
	return props, err
}

// Static is a fixed Provider.
type Static Properties

func (s Static) Properties(context.Context) (Properties, error) {
	return Properties(s), nil
}
