package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/freshness-go/internal/app"
	"github.com/tphakala/freshness-go/internal/datastore"
	"github.com/tphakala/freshness-go/internal/errors"
	freshness "github.com/tphakala/freshness-go/internal/ledger"
	"github.com/tphakala/freshness-go/internal/logger"
)

// Command creates the ledger command and its subcommands.
func Command(appCtx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the freshness ledger",
	}

	cmd.AddCommand(showCommand(appCtx), exportCommand(appCtx))
	return cmd
}

func showCommand(appCtx *app.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appCtx.Close() }()
			return Show(cmd.Context(), appCtx, cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func exportCommand(appCtx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "export [destination]",
		Short: "Copy the stored ledger table to a file",
		Long:  "Write the durable ledger table, unchanged, to destination. Use - for stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appCtx.Close() }()
			return Export(cmd.Context(), appCtx, args[0], cmd.OutOrStdout())
		},
	}
}

// withLedger opens the existing ledger, runs fn and closes the store.
func withLedger(ctx context.Context, appCtx *app.Context, fn func(*freshness.Ledger) error) error {
	l, store, err := appCtx.OpenExistingLedger(ctx)
	if errors.IsNotFound(err) {
		return fmt.Errorf("no freshness ledger has been written yet: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to load freshness ledger: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			appCtx.Log().Warn("failed to close ledger store", logger.Error(err))
		}
	}()
	return fn(l)
}

// Show writes the ledger snapshot to out as a table, or as JSON.
func Show(ctx context.Context, appCtx *app.Context, out io.Writer, asJSON bool) error {
	return withLedger(ctx, appCtx, func(l *freshness.Ledger) error {
		entries := l.Snapshot()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		return writeTable(out, entries)
	})
}

func writeTable(out io.Writer, entries []freshness.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "S NO\tPRODUCT\tFRESH COUNT\tLAST DETECTED\tLIFE SPAN")
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			e.Sequence, e.Product, e.FreshCount, e.LastSeen.Format(datastore.TimeLayout), e.Lifespan)
	}
	return tw.Flush()
}

// Export copies the stored table to dest, or to stdout for "-".
func Export(ctx context.Context, appCtx *app.Context, dest string, stdout io.Writer) error {
	return withLedger(ctx, appCtx, func(l *freshness.Ledger) error {
		if dest == "-" {
			return l.Export(ctx, stdout)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.New(fmt.Errorf("failed to create export directory: %w", err)).
				Component("ledger-export").
				Category(errors.CategoryFileIO).
				Context("path", dest).
				Build()
		}

		f, err := os.Create(dest)
		if err != nil {
			return errors.New(fmt.Errorf("failed to create export file: %w", err)).
				Component("ledger-export").
				Category(errors.CategoryFileIO).
				Context("path", dest).
				Build()
		}

		if err := l.Export(ctx, f); err != nil {
			_ = f.Close()
			_ = os.Remove(dest)
			return err
		}
		if err := f.Close(); err != nil {
			return errors.New(fmt.Errorf("failed to close export file: %w", err)).
				Component("ledger-export").
				Category(errors.CategoryFileIO).
				Context("path", dest).
				Build()
		}

		appCtx.Log().Info("ledger exported", logger.String("path", dest), logger.Int("entries", l.Len()))
		return nil
	})
}
