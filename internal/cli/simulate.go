package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateDevice    string
	simulateCondition string
	simulateMessage   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a test alert for a condition string",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateCondition == "" {
			return errors.New("--condition must be provided")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateDevice, simulateCondition, simulateMessage)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateDevice, "device", "simulated", "Device id shown in the alert")
	simulateCmd.Flags().StringVar(&simulateCondition, "condition", "is_dirty=true,is_overweight=true,is_broken=true", "Condition flag string")
	simulateCmd.Flags().StringVar(&simulateMessage, "message", "", "Message attached to the alert")
}
