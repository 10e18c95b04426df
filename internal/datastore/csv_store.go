package datastore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
)

// CSVStore keeps the ledger as a single CSV file.
type CSVStore struct {
	path     string
	location *time.Location
	log      logger.Logger
}

// NewCSVStore returns a store for the file at path. Nothing is opened until
// the first Load or Save.
func NewCSVStore(path string, location *time.Location, log logger.Logger) *CSVStore {
	if location == nil {
		location = time.Local
	}
	return &CSVStore{
		path:     path,
		location: location,
		log:      moduleLogger(log, "csv"),
	}
}

// Path returns the file the store reads and writes.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads every row of the file.
func (s *CSVStore) Load(_ context.Context) ([]ledger.Entry, error) {
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	entries, err := DecodeTable(bufio.NewReader(f), s.location)
	if err != nil {
		return nil, err
	}
	s.log.Debug("ledger file read",
		logger.String("path", s.path),
		logger.Int("rows", len(entries)))
	return entries, nil
}

// Save rewrites the file with entries. A failed Save leaves the previous
// table intact.
func (s *CSVStore) Save(_ context.Context, entries []ledger.Entry) error {
	err := replaceFile(s.path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := EncodeTable(bw, entries); err != nil {
			return fmt.Errorf("failed to encode ledger: %w", err)
		}
		return bw.Flush()
	})
	if err != nil {
		return s.fileError(err)
	}
	return nil
}

// Export copies the file byte for byte to w.
func (s *CSVStore) Export(_ context.Context, w io.Writer) error {
	f, err := s.open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return s.fileError(fmt.Errorf("failed to export ledger: %w", err))
	}
	return nil
}

// Close is a no-op; the file is only held open during a call.
func (s *CSVStore) Close() error {
	return nil
}

func (s *CSVStore) open() (*os.File, error) {
	return openStoreFile(s.path, s.fileError)
}

func (s *CSVStore) fileError(err error) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("path", s.path).
		Build()
}
