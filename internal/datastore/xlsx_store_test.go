package datastore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
)

func newTestXLSXStore(t *testing.T) *XLSXStore {
	t.Helper()
	return NewXLSXStore(filepath.Join(t.TempDir(), "ledger", "detection_fresh_count.xlsx"), time.UTC, nil)
}

// writeWorkbook saves rows to path on a sheet named sheet.
func writeWorkbook(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()
	require.NoError(t, wb.SetSheetName(wb.GetSheetName(0), sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, wb.SaveAs(path))
}

func headerRow() []any {
	return []any{"S No", "Product", "Fresh Count", "Last Detected Time", "Expected Life Span"}
}

func TestXLSXStoreMissingFile(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)

	_, err := s.Load(t.Context())
	require.ErrorIs(t, err, ledger.ErrStoreNotFound)
	assert.True(t, errors.IsNotFound(err))
	require.ErrorIs(t, s.Export(t.Context(), &bytes.Buffer{}), ledger.ErrStoreNotFound)
}

func TestXLSXStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	require.NoError(t, s.Save(t.Context(), sampleEntries))

	loaded, err := s.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, sampleEntries, loaded)

	require.NoError(t, s.Save(t.Context(), nil))
	loaded, err = s.Load(t.Context())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestXLSXStoreSheetLayout(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	require.NoError(t, s.Save(t.Context(), sampleEntries))

	wb, err := excelize.OpenFile(s.Path())
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	assert.Equal(t, []string{SheetName}, wb.GetSheetList())
	rows, err := wb.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, len(sampleEntries)+1)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"2", "onion", "12", "2024-05-02 23:59:59", "10"}, rows[3])
}

func TestXLSXStoreSaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	require.NoError(t, s.Save(t.Context(), sampleEntries))
	require.NoError(t, s.Save(t.Context(), sampleEntries[:1]))

	files, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "detection_fresh_count.xlsx", files[0].Name())
}

func TestXLSXStoreReadsActiveSheetOfForeignWorkbook(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	writeWorkbook(t, s.Path(), "Freshness", [][]any{
		headerRow(),
		{0, "apple", 4, "2024-05-01 10:00:00", 7},
		{},
		{1, "tomato", 0, "2024-05-01 11:00:00", "N/A"},
	})

	loaded, err := s.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, ledger.Days(7), loaded[0].Lifespan)
	assert.Equal(t, 4, loaded[0].FreshCount)
	assert.Equal(t, ledger.NotApplicable(), loaded[1].Lifespan)
}

func TestXLSXStoreExportIsVerbatim(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	require.NoError(t, s.Save(t.Context(), sampleEntries))

	var buf bytes.Buffer
	require.NoError(t, s.Export(t.Context(), &buf))
	onDisk, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, onDisk, buf.Bytes())
	assert.Equal(t, XLSXExport, s.ExportFormat())
}

func TestXLSXStoreCorruptWorkbooks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows [][]any
	}{
		{"empty sheet", nil},
		{"wrong columns", [][]any{{"No", "Item", "Count", "Time", "Life"}}},
		{"missing column", [][]any{{"S No", "Product", "Fresh Count", "Last Detected Time"}}},
		{"short row", [][]any{headerRow(), {0, "apple", 1, "2024-05-01 10:00:00"}}},
		{"bad count", [][]any{headerRow(), {0, "apple", "many", "2024-05-01 10:00:00", 7}}},
		{"bad time", [][]any{headerRow(), {0, "apple", 1, "01/05/2024 10:00", 7}}},
		{"bad lifespan", [][]any{headerRow(), {0, "apple", 1, "2024-05-01 10:00:00", "a week"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestXLSXStore(t)
			writeWorkbook(t, s.Path(), SheetName, tt.rows)

			_, err := s.Load(t.Context())
			require.Error(t, err)
			assert.ErrorIs(t, err, ledger.ErrStoreCorrupt)
			assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
		})
	}
}

func TestXLSXStoreRejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), []byte(sampleCSV), 0o644))

	_, err := s.Load(t.Context())
	assert.ErrorIs(t, err, ledger.ErrStoreCorrupt)
}

func TestXLSXStoreBacksLedger(t *testing.T) {
	t.Parallel()

	s := newTestXLSXStore(t)
	l, err := ledger.Load(t.Context(), s, ledger.Options{Location: time.UTC})
	require.NoError(t, err)
	assert.FileExists(t, s.Path())
	assert.Equal(t, XLSXExport, l.ExportFormat())

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.Commit(t.Context(), []ledger.Observation{
		{Product: "apple", Fresh: true},
		{Product: "onion", Fresh: false},
		{Product: "apple", Fresh: true},
	}, now))

	reloaded, err := ledger.Load(t.Context(), s, ledger.Options{Location: time.UTC})
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot(), reloaded.Snapshot())
}
