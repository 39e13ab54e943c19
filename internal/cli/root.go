package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/i474232898/astroforecast/internal/config"
	"github.com/i474232898/astroforecast/internal/logging"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	jsonOutput bool
	verbose    bool
	quiet      bool
	configPath string
)

// loadedConfig is set by the root pre-run hook.
var loadedConfig *config.AppConfig

var rootCmd = &cobra.Command{
	Use:          "astroforecast",
	Short:        "Astronomy weather forecast cache for observatory hosts",
	Long:         "Fetches the Astrospheric hourly forecast for one observing site, caches it, and reports the values for the current hour.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			verbose = false
		}
		l := newConfiguredLogger(os.Stderr)
		cmd.SetContext(logging.WithLogger(cmd.Context(), l))

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		loadedConfig = cfg
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "astroforecast %s\n", version)
			return err
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output logs and results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show warnings and errors")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file (default $CONFIG_FILE)")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
}

func newConfiguredLogger(w io.Writer) *log.Logger {
	l := logging.NewLogger(w)
	logging.Configure(l, logging.Flags{Verbose: verbose, Quiet: quiet, JSON: jsonOutput})
	return l
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
