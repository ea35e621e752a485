//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/source/google

func TestIntegration_ReadTable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	table := os.Getenv("GOOGLE_TEST_TABLE")
	if spreadsheetID == "" || table == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID or GOOGLE_TEST_TABLE not set, skipping integration test")
	}
	opts := Options{
		SpreadsheetID:   spreadsheetID,
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	}
	if opts.CredentialsJSON == "" && opts.CredentialsFile == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tables, err := client.ListTables(ctx)
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	t.Logf("tables: %v", tables)

	fields, err := client.ListFields(ctx, table)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	records, err := client.ListRecords(ctx, table)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	t.Logf("table %s: %d fields, %d records", table, len(fields), len(records))
}
