package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treemap/internal/amqp"
	"treemap/internal/chart"
	"treemap/internal/core"
	"treemap/internal/properties"
	"treemap/internal/source"
	"treemap/internal/source/memory"
	"treemap/internal/theme"
)

var expenseFields = []core.Field{
	{Name: "Name", Type: core.FieldText},
	{Name: "Amount", Type: core.FieldNumber},
	{Name: "Category", Type: core.FieldSelect},
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.AddTable("Expenses", expenseFields, []core.Row{
		core.NewRow("1", map[string]any{"Name": "Rent", "Amount": 900.0, "Category": core.Tag{Name: "Home", Color: "blueLight2"}}),
		core.NewRow("2", map[string]any{"Name": "Coffee", "Amount": 3.0, "Category": "Food"}),
		core.NewRow("3", map[string]any{"Name": "Coffee", "Amount": 2.0, "Category": "Food"}),
	}))
	return s
}

// countingReader counts ListRecords calls to observe the cache.
type countingReader struct {
	source.Reader
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingReader) ListRecords(ctx context.Context, table string) ([]core.Record, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.Reader.ListRecords(ctx, table)
}

type errProvider struct{ err error }

func (e errProvider) Properties(context.Context) (properties.Properties, error) {
	return properties.Properties{}, e.err
}

var fullProps = properties.Static{Table: "Expenses", LabelField: "Name", ValueField: "Amount", GroupByField: "Category", Title: "Budget"}

func TestPanelReady(t *testing.T) {
	svc := NewTreemapService(newStore(t), fullProps, nil, time.Minute, 8)
	view := svc.Panel(context.Background(), properties.Properties{}, theme.Dark)

	require.Equal(t, chart.StateReady, view.State)
	assert.Equal(t, theme.Dark, view.Theme.Mode)
	require.NotNil(t, view.Tree)
	assert.Equal(t, "Budget", view.Tree.ID)
	require.Len(t, view.Tree.Children, 2)
	assert.Equal(t, "Home", view.Tree.Children[0].ID)
	assert.Equal(t, "#cfdfff", view.Tree.Children[0].Color)
	assert.Equal(t, "Food", view.Tree.Children[1].ID)
	assert.Empty(t, view.Tree.Children[1].Color)
	assert.Equal(t, 905.0, view.Stats.Total)
}

func TestPanelOverrides(t *testing.T) {
	svc := NewTreemapService(newStore(t), fullProps, nil, time.Minute, 8)
	view := svc.Panel(context.Background(), properties.Properties{Title: "Flat"}, theme.Light)
	require.Equal(t, chart.StateReady, view.State)
	assert.Equal(t, "Flat", view.Tree.ID)

	view = svc.Panel(context.Background(), properties.Properties{ValueField: "Name"}, theme.Light)
	assert.Equal(t, chart.StateError, view.State)
	assert.Contains(t, view.Message, "Error loading properties: ")
	assert.Contains(t, view.Message, properties.ErrValueNotNumeric.Error())
}

func TestPanelMalformedValueCellCountsAsZero(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.LoadCSV("Budget", strings.NewReader("Name,Amount\nA,10\nA,5\nB,n/a\n")))

	props := properties.Static{Table: "Budget", LabelField: "Name", ValueField: "Amount"}
	svc := NewTreemapService(store, props, nil, time.Minute, 8)
	view := svc.Panel(context.Background(), properties.Properties{}, theme.Light)

	require.Equal(t, chart.StateReady, view.State, view.Message)
	require.Len(t, view.Tree.Children, 2)
	assert.Equal(t, "A", view.Tree.Children[0].ID)
	assert.Equal(t, 15.0, *view.Tree.Children[0].Value)
	assert.Equal(t, "B", view.Tree.Children[1].ID)
	assert.Equal(t, 0.0, *view.Tree.Children[1].Value)
}

func TestPanelIncompleteAndEmpty(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.AddTable("Empty", expenseFields, nil))

	svc := NewTreemapService(store, properties.Static{}, nil, time.Minute, 8)
	view := svc.Panel(context.Background(), properties.Properties{}, theme.Light)
	assert.Equal(t, chart.StateIncomplete, view.State)
	assert.Equal(t, []string{chart.MissingTable, chart.MissingLabel, chart.MissingValue}, view.Missing)

	view = svc.Panel(context.Background(), properties.Properties{Table: "Empty", LabelField: "Name", ValueField: "Amount"}, theme.Light)
	assert.Equal(t, chart.StateEmpty, view.State)
}

func TestPanelErrors(t *testing.T) {
	svc := NewTreemapService(newStore(t), errProvider{err: errors.New("bad toml")}, nil, time.Minute, 8)
	view := svc.Panel(context.Background(), properties.Properties{}, theme.Light)
	assert.Equal(t, chart.StateError, view.State)
	assert.Equal(t, "Error loading properties: bad toml", view.Message)

	svc = NewTreemapService(newStore(t), properties.Static{Table: "Nope", LabelField: "Name", ValueField: "Amount"}, nil, time.Minute, 8)
	view = svc.Panel(context.Background(), properties.Properties{}, theme.Light)
	assert.Equal(t, chart.StateError, view.State)
	assert.Contains(t, view.Message, source.ErrTableNotFound.Error())

	reader := &countingReader{Reader: newStore(t), err: errors.New("backend down")}
	svc = NewTreemapService(reader, fullProps, nil, time.Minute, 8)
	view = svc.Panel(context.Background(), properties.Properties{}, theme.Light)
	assert.Equal(t, chart.StateError, view.State)
	assert.Contains(t, view.Message, "backend down")
}

func TestPanelCachesRecordsUntilInvalidated(t *testing.T) {
	reader := &countingReader{Reader: newStore(t)}
	svc := NewTreemapService(reader, fullProps, nil, time.Minute, 8)
	ctx := context.Background()

	svc.Panel(ctx, properties.Properties{}, theme.Light)
	svc.Panel(ctx, properties.Properties{}, theme.Light)
	assert.Equal(t, 1, reader.calls)

	svc.Invalidate("Other")
	svc.Panel(ctx, properties.Properties{}, theme.Light)
	assert.Equal(t, 1, reader.calls)

	svc.Invalidate("Expenses")
	svc.Panel(ctx, properties.Properties{}, theme.Light)
	assert.Equal(t, 2, reader.calls)

	svc.Invalidate("")
	svc.Panel(ctx, properties.Properties{}, theme.Light)
	assert.Equal(t, 3, reader.calls)
}

func TestTablesAndFields(t *testing.T) {
	svc := NewTreemapService(newStore(t), fullProps, nil, time.Minute, 8)
	tables, err := svc.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Expenses"}, tables)

	fields, err := svc.Fields(context.Background(), "Expenses")
	require.NoError(t, err)
	assert.Equal(t, expenseFields, fields)

	// A reader without ListTables
	svc = NewTreemapService(&countingReader{Reader: newStore(t)}, fullProps, nil, time.Minute, 8)
	_, err = svc.Tables(context.Background())
	assert.ErrorIs(t, err, ErrNotSupported)
}

type fakeInvalidator struct{ tables []string }

func (f *fakeInvalidator) Invalidate(table string) { f.tables = append(f.tables, table) }

type fakePublisher struct {
	tables []string
	err    error
}

func (f *fakePublisher) PublishRecordsChanged(_ context.Context, table, _ string) error {
	f.tables = append(f.tables, table)
	return f.err
}

func TestRecordServiceAppend(t *testing.T) {
	store := newStore(t)
	inv := &fakeInvalidator{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewRecordService(store, inv, pub, "api")
	require.True(t, svc.Writable())

	id, err := svc.Append(context.Background(), "Expenses", map[string]any{"Name": "Tea", "Amount": 4})
	require.NoError(t, err, "a failed publish must not fail the append")
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"Expenses"}, inv.tables)
	assert.Equal(t, []string{"Expenses"}, pub.tables)

	recs, err := store.ListRecords(context.Background(), "Expenses")
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestRecordServiceErrors(t *testing.T) {
	_, err := NewRecordService(nil, nil, nil, "api").Append(context.Background(), "T", nil)
	assert.ErrorIs(t, err, ErrNotSupported)

	inv := &fakeInvalidator{}
	svc := NewRecordService(newStore(t), inv, nil, "api")
	_, err = svc.Append(context.Background(), "Missing", map[string]any{"Name": "x"})
	assert.ErrorIs(t, err, source.ErrTableNotFound)
	assert.Empty(t, inv.tables)
}

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload() error { f.calls++; return f.err }

func TestChangeProcessor(t *testing.T) {
	ctx := context.Background()
	inv := &fakeInvalidator{}
	rl := &fakeReloader{}
	propsCalls := 0
	p := NewChangeProcessor(inv, rl, func() error { propsCalls++; return nil })

	require.NoError(t, p.HandleRecordsChanged(ctx, amqp.NewRecordsChangedMessage("Expenses", "import")))
	assert.Equal(t, []string{"Expenses"}, inv.tables)
	assert.Equal(t, 0, rl.calls, "remote changes never reload local files")

	p.DataChanged(ctx)
	assert.Equal(t, []string{"Expenses", ""}, inv.tables)
	assert.Equal(t, 1, rl.calls)

	p.PropertiesChanged(ctx)
	assert.Equal(t, 1, propsCalls)

	assert.Error(t, p.HandleRecordsChanged(ctx, &amqp.RecordsChangedMessage{}))

	rl.err = errors.New("bad csv")
	p.DataChanged(ctx)
	assert.Len(t, inv.tables, 2, "a failed reload keeps the cache")
}
