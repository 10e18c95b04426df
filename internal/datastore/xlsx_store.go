package datastore

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
)

// SheetName is the worksheet Save writes the table to.
const SheetName = "Sheet"

// XLSXExport is the export format of the workbook store.
var XLSXExport = ledger.ExportFormat{
	ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	Extension:   ".xlsx",
}

// XLSXStore keeps the ledger as a single-sheet Excel workbook. Load reads the
// active sheet, so workbooks saved by other tools are accepted as long as the
// columns match.
type XLSXStore struct {
	path     string
	location *time.Location
	log      logger.Logger
}

// NewXLSXStore returns a store for the workbook at path. Nothing is opened
// until the first Load or Save.
func NewXLSXStore(path string, location *time.Location, log logger.Logger) *XLSXStore {
	if location == nil {
		location = time.Local
	}
	return &XLSXStore{
		path:     path,
		location: location,
		log:      moduleLogger(log, "xlsx"),
	}
}

// Path returns the workbook the store reads and writes.
func (s *XLSXStore) Path() string {
	return s.path
}

// ExportFormat reports that Export writes a workbook.
func (s *XLSXStore) ExportFormat() ledger.ExportFormat {
	return XLSXExport
}

// Load reads every row of the active sheet.
func (s *XLSXStore) Load(_ context.Context) ([]ledger.Entry, error) {
	f, err := openStoreFile(s.path, s.fileError)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return nil, corruptTable(fmt.Errorf("not a workbook: %w", err), 1)
	}
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows(wb.GetSheetName(wb.GetActiveSheetIndex()))
	if err != nil {
		return nil, corruptTable(err, 1)
	}

	entries, err := decodeSheet(rows, s.location)
	if err != nil {
		return nil, err
	}
	s.log.Debug("ledger workbook read",
		logger.String("path", s.path),
		logger.Int("rows", len(entries)))
	return entries, nil
}

// Save rewrites the workbook with entries. A failed Save leaves the previous
// workbook intact.
func (s *XLSXStore) Save(_ context.Context, entries []ledger.Entry) error {
	wb, err := buildWorkbook(entries)
	if err != nil {
		return s.fileError(fmt.Errorf("failed to build workbook: %w", err))
	}
	defer func() { _ = wb.Close() }()

	if err := replaceFile(s.path, func(w io.Writer) error { return wb.Write(w) }); err != nil {
		return s.fileError(err)
	}
	return nil
}

// Export copies the workbook byte for byte to w.
func (s *XLSXStore) Export(_ context.Context, w io.Writer) error {
	f, err := openStoreFile(s.path, s.fileError)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return s.fileError(fmt.Errorf("failed to export ledger: %w", err))
	}
	return nil
}

// Close is a no-op; the workbook is only held open during a call.
func (s *XLSXStore) Close() error {
	return nil
}

func (s *XLSXStore) fileError(err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("path", s.path).
		Build()
}

func buildWorkbook(entries []ledger.Entry) (*excelize.File, error) {
	wb := excelize.NewFile()
	if err := wb.SetSheetName(wb.GetSheetName(0), SheetName); err != nil {
		_ = wb.Close()
		return nil, err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := wb.SetSheetRow(SheetName, "A1", &header); err != nil {
		_ = wb.Close()
		return nil, err
	}

	for i := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = wb.Close()
			return nil, err
		}
		row := sheetRow(&entries[i])
		if err := wb.SetSheetRow(SheetName, cell, &row); err != nil {
			_ = wb.Close()
			return nil, err
		}
	}
	return wb, nil
}

// sheetRow keeps counts and day spans numeric so spreadsheet tools can sum them.
func sheetRow(e *ledger.Entry) []any {
	var lifespan any = e.Lifespan.String()
	if e.Lifespan.Kind == ledger.LifespanDays {
		lifespan = e.Lifespan.Days
	}
	return []any{e.Sequence, e.Product, e.FreshCount, e.LastSeen.Format(TimeLayout), lifespan}
}

func decodeSheet(rows [][]string, loc *time.Location) ([]ledger.Entry, error) {
	if len(rows) == 0 {
		return nil, corruptTable(fmt.Errorf("missing header row"), 1)
	}
	if !slices.Equal(rows[0], Header) {
		return nil, corruptTable(fmt.Errorf("unexpected columns %q", rows[0]), 1)
	}

	var entries []ledger.Entry
	for i, record := range rows[1:] {
		row := i + 2
		if len(record) == 0 {
			continue
		}
		if len(record) != len(Header) {
			return nil, corruptTable(fmt.Errorf("expected %d cells, got %d", len(Header), len(record)), row)
		}
		e, err := decodeRow(record, loc)
		if err != nil {
			return nil, corruptTable(err, row)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
