package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"treemap/internal/properties"
	"treemap/internal/theme"
)

func TestParsePanelParams(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		mode     theme.Mode
		want     properties.Properties
		wantMode theme.Mode
	}{
		{
			name:     "all values provided",
			query:    url.Values{"table": {"Budget"}, "label": {"Name"}, "value": {"Amount"}, "group": {"Category"}, "title": {"Spending"}, "mode": {"dark"}},
			mode:     theme.Light,
			want:     properties.Properties{Table: "Budget", LabelField: "Name", ValueField: "Amount", GroupByField: "Category", Title: "Spending"},
			wantMode: theme.Dark,
		},
		{
			name:     "empty query keeps defaults",
			query:    url.Values{},
			mode:     theme.Dark,
			want:     properties.Properties{},
			wantMode: theme.Dark,
		},
		{
			name:     "values are trimmed and control characters dropped",
			query:    url.Values{"label": {"  Na\x00me "}},
			mode:     theme.Light,
			want:     properties.Properties{LabelField: "Name"},
			wantMode: theme.Light,
		},
		{
			name:     "unknown mode falls back to light",
			query:    url.Values{"mode": {"sepia"}},
			mode:     theme.Dark,
			want:     properties.Properties{},
			wantMode: theme.Light,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePanelParams(tt.query, tt.mode)
			if got.Overrides != tt.want {
				t.Errorf("Overrides = %+v, want %+v", got.Overrides, tt.want)
			}
			if got.Mode != tt.wantMode {
				t.Errorf("Mode = %q, want %q", got.Mode, tt.wantMode)
			}
		})
	}
}

func newParser(body, contentType string) *RequestBodyParser {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return NewRequestBodyParser(httptest.NewRecorder(), req)
}

func TestRequestBodyParser_JSON(t *testing.T) {
	p := newParser(`{"Name":" Rent ","Amount":1200,"Category":{"name":"Home","color":"blue"}}`, "application/json")
	if !p.IsJSON() {
		t.Fatal("expected JSON body")
	}
	cells, err := p.Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	if cells["Name"] != "Rent" {
		t.Errorf("Name = %q, want trimmed Rent", cells["Name"])
	}
	if cells["Amount"] != 1200.0 {
		t.Errorf("Amount = %v, want 1200", cells["Amount"])
	}
	tag, ok := cells["Category"].(map[string]any)
	if !ok || tag["name"] != "Home" {
		t.Errorf("Category = %v, want tag object", cells["Category"])
	}
}

func TestRequestBodyParser_WrappedCells(t *testing.T) {
	cells, err := newParser(`{"cells":{"Name":"Food"}}`, "").Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	if len(cells) != 1 || cells["Name"] != "Food" {
		t.Errorf("cells = %v", cells)
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	p := newParser("Name=Food&Amount=30", "application/x-www-form-urlencoded")
	if p.IsJSON() {
		t.Fatal("form body detected as JSON")
	}
	if p.ContentType() != "application/x-www-form-urlencoded" {
		t.Errorf("ContentType() = %q", p.ContentType())
	}
	cells, err := p.Cells()
	if err != nil {
		t.Fatalf("Cells() error = %v", err)
	}
	if cells["Name"] != "Food" || cells["Amount"] != "30" {
		t.Errorf("cells = %v", cells)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	if _, err := newParser(`{"Name":`, "application/json").Cells(); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := newParser(`["a"]`, "application/json").Cells(); err == nil {
		t.Error("expected error for JSON array")
	}
	big := `{"Name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	if _, err := newParser(big, "application/json").Cells(); err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Errorf("expected size error, got %v", err)
	}

	cells, err := newParser("", "").Cells()
	if err != nil || len(cells) != 0 {
		t.Errorf("empty body: cells=%v err=%v", cells, err)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		12.5:      "12.5",
		1234.5:    "1,234.5",
		1000000:   "1,000,000",
		-9876.543: "-9,876.54",
		999.999:   "1,000",
		100.10:    "100.1",
	}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
