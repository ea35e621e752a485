package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	goauth "golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"treemap/internal/core"
	"treemap/internal/source"
)

// Ensure interface conformance
var (
	_ source.RecordSource = (*Client)(nil)
	_ source.SchemaReader = (*Client)(nil)
	_ source.TableLister  = (*Client)(nil)
)

// Options configures a Sheets client.
type Options struct {
	SpreadsheetID string
	// Service account credentials, inline JSON takes precedence over the file.
	CredentialsJSON string
	CredentialsFile string
	// RequestsPerSecond and Burst bound calls to the Sheets API.
	RequestsPerSecond float64
	Burst             int
}

// Client reads tables from the tabs of one spreadsheet. Row 1 of every tab
// is the header.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	limiter       *rate.Limiter
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	credentialsJSON, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}
	creds, err := goauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	svc, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", opts.SpreadsheetID)
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing service, mainly for tests.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 10
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func loadCredentials(opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// ListTables returns the tab titles of the spreadsheet.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", c.spreadsheetID, err)
	}
	out := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			out = append(out, sh.Properties.Title)
		}
	}
	return out, nil
}

func (c *Client) ListFields(ctx context.Context, table string) ([]core.Field, error) {
	values, err := c.readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	fields, _ := parseValues(table, values)
	return fields, nil
}

func (c *Client) ListRecords(ctx context.Context, table string) ([]core.Record, error) {
	values, err := c.readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	_, rows := parseValues(table, values)
	out := make([]core.Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

// readTable fetches the whole tab with unformatted values so numeric cells
// arrive as numbers.
func (c *Client) readTable(ctx context.Context, table string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	rng := quoteSheet(table)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", source.ErrTableNotFound, table)
		}
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// quoteSheet returns an A1 range addressing the whole tab.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// isNotFound recognises the API's answer to a range naming a missing tab.
func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	return gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")
}
