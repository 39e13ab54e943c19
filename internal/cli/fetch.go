package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/astroforecast/internal/logging"
	"github.com/i474232898/astroforecast/internal/weather"
)

var fetchAt string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one refresh cycle and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if fetchAt != "" {
			t, err := time.Parse(time.RFC3339, fetchAt)
			if err != nil {
				return fmt.Errorf("invalid --at time; use RFC3339: %w", err)
			}
			now = t
		}

		ctx := cmd.Context()
		comps := build(ctx, loadedConfig, logging.FromContext(ctx))
		defer comps.Close()

		report := comps.service.Tick(ctx, now)
		if err := writeReport(cmd.OutOrStdout(), report, jsonOutput); err != nil {
			return err
		}
		if report.Status == weather.StatusAlert {
			return fmt.Errorf("weather alert: %s", report.Cause)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchAt, "at", "", "Evaluate the forecast at this RFC3339 time instead of now")
}

func writeReport(w io.Writer, r weather.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if r.Values == nil {
		_, err := fmt.Fprintf(w, "%s: %s\n", r.Status, r.Message)
		return err
	}
	for _, p := range weather.Parameters {
		if _, err := fmt.Fprintf(w, "%-24s %8.2f\n", p.Label, r.Values.Get(p.Channel)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s (hour %d, %s)\n", r.Summary, r.Values.Hour, r.Status)
	return err
}
