package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treemap/internal/core"
	"treemap/internal/source"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "treemap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var expenseFields = []core.Field{
	{Name: "Description", Type: core.FieldText},
	{Name: "Amount", Type: core.FieldNumber},
	{Name: "Category", Type: core.FieldSelect},
}

func TestReplaceTableAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rows := []core.Row{
		core.NewRow("Expenses!A2", map[string]any{"Description": "Rent", "Amount": 900.0, "Category": core.Tag{Name: "Home", Color: "blueLight2"}}),
		core.NewRow("Expenses!A3", map[string]any{"Description": "Coffee", "Amount": 3.5}),
		core.NewRow("Expenses!A4", map[string]any{"Description": "Book", "Amount": nil, "Category": core.Tag{Name: "Fun"}}),
	}
	require.NoError(t, repo.ReplaceTable(ctx, "Expenses", "sheets", expenseFields, rows))

	tables, err := repo.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Expenses"}, tables)

	fields, err := repo.ListFields(ctx, "Expenses")
	require.NoError(t, err)
	assert.Equal(t, expenseFields, fields)

	recs, err := repo.ListRecords(ctx, "Expenses")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Expenses!A2", recs[0].ID())
	assert.Equal(t, 900.0, recs[0].CellValue("Amount"))
	assert.Equal(t, core.Tag{Name: "Home", Color: "blueLight2"}, recs[0].CellValue("Category"))
	assert.Nil(t, recs[1].CellValue("Category"))
	assert.Nil(t, recs[2].CellValue("Amount"))
	assert.Equal(t, "Book", recs[2].CellValueAsString("Description"))
}

func TestReplaceTableOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceTable(ctx, "T", "sheets", expenseFields, []core.Row{
		core.NewRow("a", map[string]any{"Description": "old"}),
	}))
	require.NoError(t, repo.ReplaceTable(ctx, "T", "sheets", expenseFields[:2], []core.Row{
		core.NewRow("a", map[string]any{"Description": "new", "Amount": 1}),
		core.NewRow("b", map[string]any{"Description": "other"}),
	}))

	fields, err := repo.ListFields(ctx, "T")
	require.NoError(t, err)
	assert.Len(t, fields, 2)

	recs, err := repo.ListRecords(ctx, "T")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "new", recs[0].CellValue("Description"))
	assert.Equal(t, 1.0, recs[0].CellValue("Amount"))
}

func TestReplaceTableRejectsInvalidField(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.ReplaceTable(context.Background(), "T", "sheets", []core.Field{{Name: "", Type: core.FieldText}}, nil)
	assert.ErrorIs(t, err, core.ErrEmptyFieldName)

	_, err = repo.ListFields(context.Background(), "T")
	assert.ErrorIs(t, err, source.ErrTableNotFound)
}

func TestAppendRecord(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceTable(ctx, "Expenses", "local", expenseFields, []core.Row{
		core.NewRow("first", map[string]any{"Description": "Rent", "Amount": 900.0}),
	}))

	id, err := repo.AppendRecord(ctx, "Expenses", map[string]any{
		"Description": "Pizza",
		"Amount":      "12,50",
		"Category":    "Food|orange",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	recs, err := repo.ListRecords(ctx, "Expenses")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, id, recs[1].ID())
	assert.Equal(t, 12.5, recs[1].CellValue("Amount"))
	assert.Equal(t, core.Tag{Name: "Food", Color: "orange"}, recs[1].CellValue("Category"))
}

func TestAppendRecordErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.AppendRecord(ctx, "Missing", map[string]any{"a": 1})
	assert.True(t, errors.Is(err, source.ErrTableNotFound))

	require.NoError(t, repo.ReplaceTable(ctx, "Expenses", "local", expenseFields, nil))
	_, err = repo.AppendRecord(ctx, "Expenses", map[string]any{"Nope": 1})
	var unknown *source.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Nope", unknown.Field)
}

func TestListRecordsEmptyTable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.ReplaceTable(ctx, "Empty", "local", expenseFields, nil))

	recs, err := repo.ListRecords(ctx, "Empty")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}

func TestEncodeCell(t *testing.T) {
	kind, _, number, _, ok := encodeCell(int64(7))
	assert.True(t, ok)
	assert.Equal(t, cellNumber, kind)
	assert.Equal(t, 7.0, number)

	kind, text, _, _, ok := encodeCell(true)
	assert.True(t, ok)
	assert.Equal(t, cellText, kind)
	assert.Equal(t, "true", text)

	_, _, _, _, ok = encodeCell(nil)
	assert.False(t, ok)
}
