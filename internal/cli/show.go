package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"isucondition/internal/app"
)

var (
	conditionsDevice string
	conditionsStart  string
	conditionsEnd    string
	conditionsLevels string
	conditionsLimit  int
	conditionsJSON   bool

	trendJSON bool

	alertsLimit int
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List a device's conditions newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if conditionsDevice == "" {
			return fmt.Errorf("--device must be provided")
		}
		if conditionsLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		a := getApp()
		loc := a.Config.GraphOptions().Location
		opts := app.ConditionsOptions{
			DeviceID: conditionsDevice,
			Levels:   conditionsLevels,
			Limit:    conditionsLimit,
			JSON:     conditionsJSON,
		}

		if conditionsStart != "" {
			start, err := parseTime(conditionsStart, loc)
			if err != nil {
				return fmt.Errorf("invalid --start value: %w", err)
			}
			opts.Start = &start
		}

		if conditionsEnd != "" {
			end, err := parseTime(conditionsEnd, loc)
			if err != nil {
				return fmt.Errorf("invalid --end value: %w", err)
			}
			opts.End = &end
		}

		return a.Conditions(cmd.Context(), opts)
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Summarise the latest condition of every device by character",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Trend(cmd.Context(), app.TrendOptions{JSON: trendJSON})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display recently dispatched alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Alerts(cmd.Context(), app.AlertsOptions{Limit: alertsLimit})
	},
}

func init() {
	conditionsCmd.Flags().StringVar(&conditionsDevice, "device", "", "Device id")
	conditionsCmd.Flags().StringVar(&conditionsStart, "start", "", "Earliest timestamp (inclusive)")
	conditionsCmd.Flags().StringVar(&conditionsEnd, "end", "", "Latest timestamp (exclusive, defaults to now)")
	conditionsCmd.Flags().StringVar(&conditionsLevels, "levels", "", "Comma separated levels: info,warning,critical")
	conditionsCmd.Flags().IntVar(&conditionsLimit, "limit", 0, "Maximum rows (defaults to config)")
	conditionsCmd.Flags().BoolVar(&conditionsJSON, "json", false, "Print JSON instead of a table")

	trendCmd.Flags().BoolVar(&trendJSON, "json", false, "Print JSON instead of a table")

	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")
}
