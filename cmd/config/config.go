package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/freshness-go/internal/app"
	"github.com/tphakala/freshness-go/internal/conf"
)

// Command creates the config command.
func Command(appCtx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	var output string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective settings as YAML",
		Long:  "Print the settings after defaults, config file, environment and flags have been merged.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = appCtx.Close() }()
			if output != "" {
				return conf.SaveYAMLConfig(output, appCtx.Settings)
			}
			return conf.WriteYAML(cmd.OutOrStdout(), appCtx.Settings)
		},
	}
	dumpCmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")

	cmd.AddCommand(dumpCmd)
	return cmd
}
