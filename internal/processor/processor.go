// Package processor runs one batch of raw detections through the label
// decoder and into the freshness ledger.
package processor

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/freshness-go/internal/detection"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/labels"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/mqtt"
	"github.com/tphakala/freshness-go/internal/observability/metrics"
)

// DefaultPublishTimeout bounds the best-effort MQTT publish of a batch.
const DefaultPublishTimeout = 5 * time.Second

// Publisher receives the result of every committed batch.
type Publisher interface {
	PublishBatch(ctx context.Context, msg mqtt.BatchMessage) error
}

// BatchResult is what one processed batch produced.
type BatchResult struct {
	BatchID string `json:"batch_id"`
	// Detections holds every detection that passed the gate, in input order
	Detections []detection.Classified `json:"detections"`
	// Discarded counts detections below the confidence threshold
	Discarded int `json:"discarded"`
	// Invalid counts detections whose class index could not be decoded
	Invalid int `json:"invalid"`
}

// Processor decodes, folds and persists detection batches.
type Processor struct {
	table          *labels.Table
	ledger         *ledger.Ledger
	publisher      Publisher
	publishTimeout time.Duration
	log            logger.Logger
	metrics        *metrics.ProcessorMetrics
	now            func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithPublisher publishes every committed batch through p.
func WithPublisher(p Publisher) Option {
	return func(proc *Processor) { proc.publisher = p }
}

// WithMetrics records batch and detection counters.
func WithMetrics(m *metrics.ProcessorMetrics) Option {
	return func(proc *Processor) { proc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(proc *Processor) { proc.log = l }
}

// WithClock replaces time.Now as the source of detection timestamps.
func WithClock(now func() time.Time) Option {
	return func(proc *Processor) { proc.now = now }
}

// New returns a Processor that decodes with table and commits to l.
func New(table *labels.Table, l *ledger.Ledger, opts ...Option) *Processor {
	p := &Processor{
		table:          table,
		ledger:         l,
		publishTimeout: DefaultPublishTimeout,
		log:            logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.Module("processor")
	return p
}

// ProcessBatch decodes raw, drops detections below the threshold, skips
// undecodable ones, commits the survivors to the ledger with a single
// persist and returns them.
//
// An empty survivor set is a successful batch. When the persist fails the
// returned error wraps ledger.ErrPersistFailure; the result is still
// returned and the ledger keeps the upserts.
func (p *Processor) ProcessBatch(ctx context.Context, raw []detection.RawDetection) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{
		BatchID:    uuid.NewString(),
		Detections: make([]detection.Classified, 0, len(raw)),
	}
	log := p.log.WithContext(logger.WithTraceID(ctx, result.BatchID))

	observations := make([]ledger.Observation, 0, len(raw))
	for i, r := range raw {
		c, ok, err := p.table.Decode(r)
		switch {
		case err != nil:
			result.Invalid++
			p.metrics.RecordDetection(metrics.OutcomeInvalidLabel)
			log.Warn("skipping undecodable detection",
				logger.Int("position", i),
				logger.Int("class_index", r.ClassIndex),
				logger.Error(err))
			continue
		case !ok:
			result.Discarded++
			p.metrics.RecordDetection(metrics.OutcomeBelowThreshold)
			continue
		}

		p.metrics.RecordDetection(metrics.OutcomeAccepted)
		result.Detections = append(result.Detections, c)
		observations = append(observations, ledger.Observation{
			Product: c.Product,
			Fresh:   c.Freshness.IsFresh(),
		})
	}

	now := p.now()
	if err := p.ledger.Commit(ctx, observations, now); err != nil {
		p.metrics.RecordBatch(time.Since(start), err)
		log.Error("batch commit failed",
			logger.Int("accepted", len(result.Detections)),
			logger.Error(err))
		return result, err
	}
	p.metrics.RecordBatch(time.Since(start), nil)

	log.Info("batch processed",
		logger.Int("received", len(raw)),
		logger.Int("accepted", len(result.Detections)),
		logger.Int("discarded", result.Discarded),
		logger.Int("invalid", result.Invalid),
		logger.Duration("duration", time.Since(start)))

	p.publish(ctx, log, result, now)
	return result, nil
}

// publish sends the batch to the publisher, if any. Failures are logged only.
func (p *Processor) publish(ctx context.Context, log logger.Logger, result *BatchResult, ts time.Time) {
	if p.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.publishTimeout)
	defer cancel()

	err := p.publisher.PublishBatch(ctx, mqtt.NewBatchMessage(result.BatchID, ts, result.Detections))
	p.metrics.RecordPublish(err)
	if err != nil {
		log.Warn("failed to publish batch",
			logger.Error(err),
			logger.Bool("timeout", errors.Is(err, context.DeadlineExceeded)))
	}
}
