package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/freshness-go/internal/app"
	"github.com/tphakala/freshness-go/internal/httpcontroller"
	"github.com/tphakala/freshness-go/internal/logger"
	"github.com/tphakala/freshness-go/internal/processor"
)

// Command creates the serve command.
func Command(appCtx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection HTTP API",
		Long:  "Load the freshness ledger and accept detection batches over HTTP until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appCtx.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, appCtx)
		},
	}

	return cmd
}

// Run serves until ctx is cancelled or the HTTP server fails.
func Run(ctx context.Context, appCtx *app.Context) error {
	log := appCtx.Log()
	settings := appCtx.Settings

	if !settings.WebServer.Enabled {
		return fmt.Errorf("webserver is disabled in configuration, nothing to serve")
	}

	l, store, err := appCtx.OpenLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to load freshness ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close ledger store", logger.Error(err))
		}
	}()

	var opts []processor.Option
	publisher, client, err := appCtx.ConnectMQTT(ctx)
	if err != nil {
		// batches are still recorded without MQTT
		log.Warn("MQTT unavailable, batch results will not be published", logger.Error(err))
	} else if publisher != nil {
		defer client.Disconnect()
		opts = append(opts, processor.WithPublisher(publisher))
		log.Info("publishing batch results", logger.String("topic", publisher.Topic()))
	}

	proc := appCtx.NewProcessor(l, opts...)
	server := httpcontroller.New(&settings.WebServer, proc, l, appCtx.Metrics.Handler(), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settings.WebServer.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("freshness service stopped", logger.Int("entries", l.Len()))
	return nil
}
