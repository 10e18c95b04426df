package ledger

import (
	"context"
	"io"

	"github.com/tphakala/freshness-go/internal/errors"
)

// Store error kinds. Implementations wrap these so callers can use errors.Is.
var (
	// ErrStoreNotFound means nothing has been written to the store yet
	ErrStoreNotFound = errors.NewStd("ledger store not found")
	// ErrStoreCorrupt means the store exists but cannot be read as a ledger
	ErrStoreCorrupt = errors.NewStd("ledger store corrupt")
	// ErrPersistFailure means the store could not be written
	ErrPersistFailure = errors.NewStd("ledger persist failed")
)

// Store is the durable backing of a Ledger.
type Store interface {
	// Load returns all stored entries in any order.
	Load(ctx context.Context) ([]Entry, error)
	// Save replaces the stored table with entries. A failed Save must leave
	// the previously stored table readable.
	Save(ctx context.Context, entries []Entry) error
	// Export writes the stored table to w in the durable tabular format.
	Export(ctx context.Context, w io.Writer) error
	// Close releases the store's resources.
	Close() error
}

// ExportFormat describes the bytes a Store's Export writes.
type ExportFormat struct {
	ContentType string
	// Extension includes the leading dot
	Extension string
}

// CSVExport is the format of stores that do not report one.
var CSVExport = ExportFormat{ContentType: "text/csv; charset=utf-8", Extension: ".csv"}

// FormatReporter is implemented by stores whose Export is not CSV.
type FormatReporter interface {
	ExportFormat() ExportFormat
}
