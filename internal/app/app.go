// Package app holds the components every command builds from the loaded
// settings: logger, metrics, store, ledger and processor.
package app

import (
	"context"
	"fmt"

	"github.com/tphakala/freshness-go/internal/conf"
	"github.com/tphakala/freshness-go/internal/datastore"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/labels"
	"github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/mqtt"
	"github.com/tphakala/freshness-go/internal/observability"
	"github.com/tphakala/freshness-go/internal/processor"
)

// Context carries the shared runtime state of a command.
type Context struct {
	Settings *conf.Settings
	Logger   *logger.CentralLogger
	Metrics  *observability.Metrics
}

// New builds a Context from already loaded settings.
func New(settings *conf.Settings) (*Context, error) {
	c := &Context{}
	if err := c.Init(settings); err != nil {
		return nil, err
	}
	return c, nil
}

// Init fills c from settings. Commands share one Context that is created
// empty and initialized once flags and config have been read.
func (c *Context) Init(settings *conf.Settings) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	m, err := observability.NewMetrics()
	if err != nil {
		_ = central.Close()
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	c.Settings = settings
	c.Logger = central
	c.Metrics = m
	return nil
}

// Log returns the application root logger.
func (c *Context) Log() logger.Logger {
	return c.Logger.Module("freshness")
}

// Close flushes the log file. It is safe on an uninitialized Context.
func (c *Context) Close() error {
	return c.Logger.Close()
}

// OpenLedger opens the configured store and loads the ledger from it. The
// caller owns the returned store and must close it.
func (c *Context) OpenLedger(ctx context.Context) (*ledger.Ledger, ledger.Store, error) {
	return c.openLedger(ctx, false)
}

// OpenExistingLedger is OpenLedger for read-only use: a store that has never
// been written is reported as ledger.ErrStoreNotFound and is not created.
func (c *Context) OpenExistingLedger(ctx context.Context) (*ledger.Ledger, ledger.Store, error) {
	return c.openLedger(ctx, true)
}

func (c *Context) openLedger(ctx context.Context, mustExist bool) (*ledger.Ledger, ledger.Store, error) {
	loc, err := c.Settings.Location()
	if err != nil {
		return nil, nil, errors.New(fmt.Errorf("invalid ledger timezone: %w", err)).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	store, err := datastore.New(c.Settings, c.Log())
	if err != nil {
		return nil, nil, err
	}

	l, err := ledger.Load(ctx, store, ledger.Options{
		Lifespans: c.Settings.LedgerLifespans(),
		Location:  loc,
		Logger:    c.Log().Module("ledger"),
		Metrics:   c.Metrics.Ledger,
		MustExist: mustExist,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	c.Log().Info("ledger loaded",
		logger.Int("entries", l.Len()),
		logger.String("output", c.Settings.Output.Type))
	return l, store, nil
}

// LabelTable returns the decoder configured by the detector settings.
func (c *Context) LabelTable() *labels.Table {
	return labels.NewTable(c.Settings.Detector.Labels, c.Settings.Detector.Threshold)
}

// NewProcessor returns a processor committing into l.
func (c *Context) NewProcessor(l *ledger.Ledger, opts ...processor.Option) *processor.Processor {
	base := []processor.Option{
		processor.WithLogger(c.Log()),
		processor.WithMetrics(c.Metrics.Processor),
	}
	return processor.New(c.LabelTable(), l, append(base, opts...)...)
}

// ConnectMQTT connects to the configured broker and returns a publisher for
// batch results. It returns nil, nil when MQTT is disabled.
func (c *Context) ConnectMQTT(ctx context.Context) (*mqtt.Publisher, mqtt.Client, error) {
	if !c.Settings.MQTT.Enabled {
		return nil, nil, nil
	}

	cfg := mqtt.ConfigFromSettings(c.Settings)
	client := mqtt.NewClient(cfg, c.Log())
	if err := client.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return mqtt.NewPublisher(client, cfg.Topic), client, nil
}
