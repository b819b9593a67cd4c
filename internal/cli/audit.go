package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"isucondition/internal/app"
)

var (
	auditDevice string
	auditFrom   string
	auditTo     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Rebuild daily graphs over a date range and report failing days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditDevice == "" {
			return fmt.Errorf("--device must be provided")
		}
		if auditFrom == "" || auditTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		a := getApp()
		loc := a.Config.GraphOptions().Location

		from, err := parseTime(auditFrom, loc)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := parseTime(auditTo, loc)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		return a.Audit(cmd.Context(), app.AuditOptions{
			DeviceID: auditDevice,
			From:     from,
			To:       to,
		})
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditDevice, "device", "", "Device id")
	auditCmd.Flags().StringVar(&auditFrom, "from", "", "First day (YYYY-MM-DD or RFC3339, inclusive)")
	auditCmd.Flags().StringVar(&auditTo, "to", "", "End (YYYY-MM-DD or RFC3339, exclusive)")
}
