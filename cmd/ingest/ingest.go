package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/freshness-go/internal/app"
	"github.com/tphakala/freshness-go/internal/detection"
	"github.com/tphakala/freshness-go/internal/errors"
	"github.com/tphakala/freshness-go/internal/logger"
)

// Command creates the ingest command.
func Command(appCtx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [detections.json]",
		Short: "Process a file of raw detections as one batch",
		Long:  "Read a JSON array of raw detections ({class_index, confidence, bbox}) and fold it into the ledger. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appCtx.Close() }()

			raw, err := readDetections(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return Run(cmd.Context(), appCtx, raw, cmd.OutOrStdout())
		},
	}

	return cmd
}

// Run processes raw as a single batch and writes the result as JSON to out.
func Run(ctx context.Context, appCtx *app.Context, raw []detection.RawDetection, out io.Writer) error {
	l, store, err := appCtx.OpenLedger(ctx)
	if err != nil {
		return fmt.Errorf("failed to load freshness ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appCtx.Log().Warn("failed to close ledger store", logger.Error(err))
		}
	}()

	result, err := appCtx.NewProcessor(l).ProcessBatch(ctx, raw)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readDetections decodes the detections file at path, or stdin for "-".
func readDetections(stdin io.Reader, path string) ([]detection.RawDetection, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.New(fmt.Errorf("failed to open detections file: %w", err)).
				Component("ingest").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		defer f.Close()
		r = f
	}

	var raw []detection.RawDetection
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode detections: %w", err)).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return raw, nil
}
