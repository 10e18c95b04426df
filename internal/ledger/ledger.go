// Package ledger keeps the per-product freshness aggregates and their durable copy.
//
// A Ledger is created once at process start with Load and shared by reference.
// Every mutation batch goes through Commit, which holds the ledger lock across
// the upserts and the following Persist so concurrent batches cannot lose
// increments.
package ledger

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/observability/metrics"
)

// Options configures a Ledger. The zero value is usable.
type Options struct {
	// Lifespans maps product to shelf life in days; nil means DefaultLifespans
	Lifespans LifespanTable
	// Location is the zone timestamps are recorded in; nil means time.Local
	Location *time.Location
	Logger   logger.Logger
	Metrics  *metrics.LedgerMetrics
	// MustExist makes Load fail with ErrStoreNotFound instead of creating
	// the empty table
	MustExist bool
}

// Observation is one decoded detection as the ledger sees it.
type Observation struct {
	Product string
	Fresh   bool
}

// Ledger is the in-memory table of entries plus its store handle.
type Ledger struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	nextSeq   int
	lifespans LifespanTable
	location  *time.Location
	store     Store
	log       logger.Logger
	metrics   *metrics.LedgerMetrics
}

// New returns an empty ledger backed by store. It does not touch the store.
func New(store Store, opts Options) *Ledger {
	if opts.Lifespans == nil {
		opts.Lifespans = DefaultLifespans
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
	}
	return &Ledger{
		entries:   make(map[string]*Entry),
		lifespans: opts.Lifespans,
		location:  opts.Location,
		store:     store,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Load builds a ledger from store.
//
// A store that does not exist yet yields an empty ledger and the empty table
// (header only) is written right away, unless opts.MustExist is set. A
// corrupt store is returned as an error wrapping ErrStoreCorrupt.
func Load(ctx context.Context, store Store, opts Options) (*Ledger, error) {
	l := New(store, opts)

	stored, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrStoreNotFound) && opts.MustExist:
		return nil, err
	case errors.Is(err, ErrStoreNotFound):
		l.log.Info("no ledger store found, starting empty")
		if err := l.Persist(ctx); err != nil {
			return nil, err
		}
		return l, nil
	case err != nil:
		if errors.Is(err, ErrStoreCorrupt) {
			return nil, err
		}
		return nil, errors.New(fmt.Errorf("failed to read ledger store: %w", err)).
			Component("ledger").
			Category(errors.CategoryFileIO).
			Build()
	}

	if err := l.restore(stored); err != nil {
		return nil, err
	}

	l.metrics.SetEntries(len(l.entries))
	l.log.Info("ledger loaded",
		logger.Int("entries", len(l.entries)),
		logger.Int("next_sequence", l.nextSeq))
	return l, nil
}

func (l *Ledger) restore(stored []Entry) error {
	seqs := make(map[int]string, len(stored))
	for i := range stored {
		e := stored[i]
		if err := checkEntry(&e); err != nil {
			return corrupt(err, e)
		}
		if _, dup := l.entries[e.Product]; dup {
			return corrupt(fmt.Errorf("duplicate product %q", e.Product), e)
		}
		if other, dup := seqs[e.Sequence]; dup {
			return corrupt(fmt.Errorf("sequence number %d shared by %q and %q", e.Sequence, other, e.Product), e)
		}
		seqs[e.Sequence] = e.Product

		e.LastSeen = e.LastSeen.In(l.location)
		l.entries[e.Product] = &e
		if e.Sequence >= l.nextSeq {
			l.nextSeq = e.Sequence + 1
		}
	}
	return nil
}

func checkEntry(e *Entry) error {
	switch {
	case e.Product == "":
		return fmt.Errorf("empty product at sequence %d", e.Sequence)
	case e.Sequence < 0:
		return fmt.Errorf("negative sequence number %d", e.Sequence)
	case e.FreshCount < 0:
		return fmt.Errorf("negative fresh count %d", e.FreshCount)
	}
	return nil
}

func corrupt(err error, e Entry) error {
	return errors.New(fmt.Errorf("%w: %w", ErrStoreCorrupt, err)).
		Component("ledger").
		Category(errors.CategoryFileParsing).
		Context("product", e.Product).
		Context("sequence", e.Sequence).
		Build()
}

// Upsert records one observation of product at now and returns the entry as
// it stands afterwards. Calling it twice counts twice.
func (l *Ledger) Upsert(product string, fresh bool, now time.Time) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.upsertLocked(product, fresh, now)
}

func (l *Ledger) upsertLocked(product string, fresh bool, now time.Time) Entry {
	now = now.In(l.location).Truncate(time.Second)
	lifespan := l.lifespans.Resolve(product, fresh)

	e, found := l.entries[product]
	if !found {
		e = &Entry{
			Sequence: l.nextSeq,
			Product:  product,
		}
		l.nextSeq++
		l.entries[product] = e
		l.metrics.SetEntries(len(l.entries))
	}
	if fresh {
		e.FreshCount++
	}
	e.LastSeen = now
	e.Lifespan = lifespan

	l.metrics.RecordUpsert(freshnessLabel(fresh), !found)
	l.log.Debug("ledger upsert",
		logger.String("product", product),
		logger.Bool("fresh", fresh),
		logger.Bool("created", !found),
		logger.Int("fresh_count", e.FreshCount))
	return *e
}

func freshnessLabel(fresh bool) string {
	if fresh {
		return "fresh"
	}
	return "stale"
}

// Commit folds a batch of observations into the ledger and persists it,
// holding the ledger lock for the whole sequence. Upserts are not rolled
// back when the persist fails.
func (l *Ledger) Commit(ctx context.Context, observations []Observation, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range observations {
		l.upsertLocked(o.Product, o.Fresh, now)
	}
	return l.persistLocked(ctx)
}

// Snapshot returns a copy of all entries ordered by sequence number.
func (l *Ledger) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return out
}

// Persist writes the full table to the store.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

// persistLocked ignores cancellation of ctx: the upserts are already applied,
// so a write abandoned halfway would let a retried batch count twice.
func (l *Ledger) persistLocked(ctx context.Context) error {
	entries := l.snapshotLocked()

	start := time.Now()
	err := l.store.Save(context.WithoutCancel(ctx), entries)
	elapsed := time.Since(start)
	l.metrics.RecordPersist(elapsed, err)

	if err != nil {
		l.log.Error("ledger persist failed",
			logger.Error(err),
			logger.Int("entries", len(entries)),
			logger.Duration("duration", elapsed))
		return errors.New(fmt.Errorf("%w: %w", ErrPersistFailure, err)).
			Component("ledger").
			Category(errors.CategoryPersist).
			Context("entries", len(entries)).
			Timing("persist", elapsed).
			Build()
	}

	l.log.Debug("ledger persisted",
		logger.Int("entries", len(entries)),
		logger.Duration("duration", elapsed))
	return nil
}

// Get returns the entry for product.
func (l *Ledger) Get(product string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[product]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Location returns the zone timestamps are recorded in.
func (l *Ledger) Location() *time.Location {
	return l.location
}

// Export writes the stored table, unchanged, to w. It returns an error
// wrapping ErrStoreNotFound when nothing has been persisted.
func (l *Ledger) Export(ctx context.Context, w io.Writer) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.Export(ctx, w)
}

// ExportFormat reports what Export writes.
func (l *Ledger) ExportFormat() ExportFormat {
	if r, ok := l.store.(FormatReporter); ok {
		return r.ExportFormat()
	}
	return CSVExport
}
