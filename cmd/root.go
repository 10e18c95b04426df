package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/tphakala/freshness-go/cmd/config"
	"github.com/tphakala/freshness-go/cmd/ingest"
	ledgercmd "github.com/tphakala/freshness-go/cmd/ledger"
	"github.com/tphakala/freshness-go/cmd/serve"
	"github.com/tphakala/freshness-go/internal/app"
	"github.com/tphakala/freshness-go/internal/conf"
)

// RootCommand creates and returns the root command. appCtx is filled in
// before any subcommand runs.
func RootCommand(appCtx *app.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "freshness",
		Short:         "Produce freshness ledger",
		Long:          "Aggregate produce freshness detections into a per-product ledger and keep it on disk or in a database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		// flag wiring is static, a failure here is a programming error
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(appCtx),
		ingest.Command(appCtx),
		ledgercmd.Command(appCtx),
		configcmd.Command(appCtx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		return appCtx.Init(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their config keys.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file (default: search standard locations)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.Float64P("threshold", "t", 0, "Confidence threshold for detections, value between 0.0 and 1.0")
	flags.String("store", "", "Path to the CSV ledger file")

	bindings := map[string]string{
		"debug":              "debug",
		"detector.threshold": "threshold",
		"output.csv.path":    "store",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
