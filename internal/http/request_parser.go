// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// panel overrides from the query string and record cells from the body.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"treemap/internal/properties"
	"treemap/internal/theme"
)

// MaxBodyBytes bounds the size of a record payload.
const MaxBodyBytes = 64 << 10

// PanelParams holds the per-request panel overrides.
type PanelParams struct {
	Overrides properties.Properties
	Mode      theme.Mode
}

// ParsePanelParams reads table, label, value, group, title and mode from
// the query. Blank parameters leave the configured property in place.
func ParsePanelParams(query url.Values, defaultMode theme.Mode) PanelParams {
	params := PanelParams{
		Overrides: properties.Properties{
			Table:        sanitizeInput(query.Get("table")),
			LabelField:   sanitizeInput(query.Get("label")),
			ValueField:   sanitizeInput(query.Get("value")),
			GroupByField: sanitizeInput(query.Get("group")),
			Title:        sanitizeInput(query.Get("title")),
		},
		Mode: defaultMode,
	}
	if m := strings.TrimSpace(query.Get("mode")); m != "" {
		params.Mode = theme.ParseMode(m)
	}
	return params
}

// RequestBodyParser reads record cells from a JSON object or a form body.
type RequestBodyParser struct {
	body        []byte
	contentType string
	err         error
}

// NewRequestBodyParser reads the body once, bounded by MaxBodyBytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	return p
}

// Cells returns the decoded cells. JSON values keep their types (numbers,
// strings, {name, color} tags); form values are strings.
func (p *RequestBodyParser) Cells() (map[string]any, error) {
	if p.err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(p.err, &tooLarge) {
			return nil, fmt.Errorf("request body larger than %d bytes", MaxBodyBytes)
		}
		return nil, fmt.Errorf("read request body: %w", p.err)
	}
	if len(p.body) == 0 {
		return map[string]any{}, nil
	}

	if p.IsJSON() {
		var raw map[string]any
		if err := json.Unmarshal(p.body, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		// Accept both {"cells": {...}} and a bare object of cells.
		if inner, ok := raw["cells"].(map[string]any); ok && len(raw) == 1 {
			raw = inner
		}
		cells := make(map[string]any, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				v = sanitizeInput(s)
			}
			cells[strings.TrimSpace(k)] = v
		}
		return cells, nil
	}

	form, err := url.ParseQuery(string(p.body))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	cells := make(map[string]any, len(form))
	for k := range form {
		cells[strings.TrimSpace(k)] = sanitizeInput(form.Get(k))
	}
	return cells, nil
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON reports whether the body is JSON, by header or by its first byte.
func (p *RequestBodyParser) IsJSON() bool {
	if strings.HasPrefix(p.contentType, "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(p.body))
	return strings.HasPrefix(trimmed, "{")
}
