package datastore

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
)

// TimeLayout is the format of the Last Detected Time column.
const TimeLayout = "2006-01-02 15:04:05"

// Header is the column row of the durable table, in order.
var Header = []string{"S No", "Product", "Fresh Count", "Last Detected Time", "Expected Life Span"}

const utf8BOM = "\ufeff"

// EncodeTable writes the header and one row per entry to w.
func EncodeTable(w io.Writer, entries []ledger.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range entries {
		if err := cw.Write(encodeRow(&entries[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeRow(e *ledger.Entry) []string {
	return []string{
		strconv.Itoa(e.Sequence),
		e.Product,
		strconv.Itoa(e.FreshCount),
		e.LastSeen.Format(TimeLayout),
		e.Lifespan.String(),
	}
}

// DecodeTable reads a table written by EncodeTable. Timestamps are read in
// loc. Any deviation from the format yields an error wrapping
// ledger.ErrStoreCorrupt.
func DecodeTable(r io.Reader, loc *time.Location) ([]ledger.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, corruptTable(fmt.Errorf("missing header row"), 1)
	}
	if err != nil {
		return nil, corruptTable(err, 1)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if !slices.Equal(header, Header) {
		return nil, corruptTable(fmt.Errorf("unexpected columns %q", header), 1)
	}

	var entries []ledger.Entry
	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, corruptTable(err, row)
		}
		e, err := decodeRow(record, loc)
		if err != nil {
			return nil, corruptTable(err, row)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeRow(record []string, loc *time.Location) (ledger.Entry, error) {
	seq, err := strconv.Atoi(strings.TrimSpace(record[0]))
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("invalid S No %q", record[0])
	}
	count, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("invalid Fresh Count %q", record[2])
	}
	seen, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(record[3]), loc)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("invalid Last Detected Time %q", record[3])
	}
	lifespan, err := ledger.ParseLifespan(strings.TrimSpace(record[4]))
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		Sequence:   seq,
		Product:    record[1],
		FreshCount: count,
		LastSeen:   seen,
		Lifespan:   lifespan,
	}, nil
}

func corruptTable(err error, row int) error {
	return errors.New(fmt.Errorf("%w: row %d: %w", ledger.ErrStoreCorrupt, row, err)).
		Component("datastore").
		Category(errors.CategoryFileParsing).
		Context("row", row).
		Build()
}
