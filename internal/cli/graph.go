package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"isucondition/internal/app"
)

var (
	graphDevice  string
	graphDate    string
	graphFormat  string
	graphPNGPath string
	graphCSVPath string
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show a device's hourly condition scores for one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		if graphDevice == "" {
			return fmt.Errorf("--device must be provided")
		}

		a := getApp()
		opts := app.GraphOptions{
			DeviceID: graphDevice,
			Day:      time.Now(),
			Format:   graphFormat,
			PNGPath:  graphPNGPath,
			CSVPath:  graphCSVPath,
		}

		if graphDate != "" {
			day, err := parseTime(graphDate, a.Config.GraphOptions().Location)
			if err != nil {
				return fmt.Errorf("invalid --date value: %w", err)
			}
			opts.Day = day
		}

		return a.Graph(cmd.Context(), opts)
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphDevice, "device", "", "Device id")
	graphCmd.Flags().StringVar(&graphDate, "date", "", "Day to render (YYYY-MM-DD or RFC3339, defaults to today)")
	graphCmd.Flags().StringVar(&graphFormat, "format", "table", "Output format: table or json")
	graphCmd.Flags().StringVar(&graphPNGPath, "png", "", "Path to write PNG chart")
	graphCmd.Flags().StringVar(&graphCSVPath, "csv", "", "Path to write CSV data")
}
