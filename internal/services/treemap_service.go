package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"treemap/internal/cache"
	"treemap/internal/chart"
	"treemap/internal/core"
	"treemap/internal/properties"
	"treemap/internal/source"
	"treemap/internal/theme"
)

// PanelView is what the HTTP layer renders: the panel plus the theme
// parameters for the renderer.
type PanelView struct {
	chart.Panel
	Theme theme.Params `json:"theme"`
}

// TreemapService turns the configured table into the panel shown to users.
type TreemapService struct {
	reader   source.Reader
	props    properties.Provider
	resolver theme.Resolver
	records  *cache.LRUCache[[]core.Record]
}

// Invalidator drops cached records of a table ("" for every table).
type Invalidator interface {
	Invalidate(table string)
}

var _ Invalidator = (*TreemapService)(nil)

// NewTreemapService wires the panel pipeline. A zero cacheTTL disables
// record caching.
func NewTreemapService(reader source.Reader, props properties.Provider, resolver theme.Resolver, cacheTTL time.Duration, cacheSize int) *TreemapService {
	if resolver == nil {
		resolver = theme.DefaultPalette()
	}
	return &TreemapService{
		reader:   reader,
		props:    props,
		resolver: resolver,
		records:  cache.NewLRUCache[[]core.Record](cacheSize, cacheTTL),
	}
}

// RecordCache exposes the record cache so it can be registered for cleanup.
func (s *TreemapService) RecordCache() *cache.LRUCache[[]core.Record] {
	return s.records
}

// Panel loads properties, applies overrides, fetches records and evaluates
// the panel. It never returns an error: failures become the error state.
func (s *TreemapService) Panel(ctx context.Context, overrides properties.Properties, mode theme.Mode) PanelView {
	view := PanelView{Theme: theme.ParamsFor(mode)}

	props, err := s.props.Properties(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load properties", "error", err)
		view.Panel = chart.Evaluate(chart.Input{PropertiesErr: err})
		return view
	}
	props = props.Overlay(overrides)

	sel := core.FieldSelection{Title: props.RootTitle()}
	var records []core.Record
	if props.Table != "" {
		fields, err := s.reader.ListFields(ctx, props.Table)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list fields", "table", props.Table, "error", err)
			view.Panel = chart.Evaluate(chart.Input{PropertiesErr: err, Table: props.Table, Selection: sel})
			return view
		}
		sel, err = properties.Resolve(props, fields)
		if err != nil {
			view.Panel = chart.Evaluate(chart.Input{PropertiesErr: err, Table: props.Table, Selection: core.FieldSelection{Title: props.RootTitle()}})
			return view
		}
		if sel.IsSet() {
			records, err = s.loadRecords(ctx, props.Table)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to list records", "table", props.Table, "error", err)
				view.Panel = chart.Evaluate(chart.Input{PropertiesErr: err, Table: props.Table, Selection: sel})
				return view
			}
		}
	}

	view.Panel = chart.Evaluate(chart.Input{Table: props.Table, Selection: sel, Records: records})
	if view.Tree != nil {
		decorated := theme.Decorate(*view.Tree, s.resolver)
		view.Tree = &decorated
	}
	return view
}

func (s *TreemapService) loadRecords(ctx context.Context, table string) ([]core.Record, error) {
	if recs, ok := s.records.Get(table); ok {
		return recs, nil
	}
	recs, err := s.reader.ListRecords(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("list records of %s: %w", table, err)
	}
	s.records.Set(table, recs)
	slog.DebugContext(ctx, "Records loaded", "table", table, "count", len(recs))
	return recs, nil
}

func (s *TreemapService) Invalidate(table string) {
	if table == "" {
		s.records.Purge()
		return
	}
	s.records.Delete(table)
}

// Tables lists the tables of the backend, when it can enumerate them.
func (s *TreemapService) Tables(ctx context.Context) ([]string, error) {
	lister, ok := s.reader.(source.TableLister)
	if !ok {
		return nil, ErrNotSupported
	}
	return lister.ListTables(ctx)
}

// Fields lists the fields of table.
func (s *TreemapService) Fields(ctx context.Context, table string) ([]core.Field, error) {
	return s.reader.ListFields(ctx, table)
}

// ErrNotSupported is returned when the backend lacks a capability.
var ErrNotSupported = errors.New("operation not supported by the data backend")
