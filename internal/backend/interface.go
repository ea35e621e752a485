package backend

import (
	"context"

	"treemap/internal/services"
	"treemap/internal/source"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// BackendResult contains the record source and the optional capabilities of
// the selected backend
type BackendResult struct {
	Reader source.Reader
	// Writer is nil for read-only backends
	Writer source.RecordWriter
	// Reloader is set when the data lives in files that can be re-read
	Reloader services.Reloader
	// WatchPaths lists files or directories whose changes call Reloader
	WatchPaths []string
	Cleanup    CleanupFunc
}

// Close runs Cleanup when set
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsRequestsPerSecond  float64

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
