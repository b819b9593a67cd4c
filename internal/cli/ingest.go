package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"isucondition/internal/app"
)

var (
	ingestDevice string
	ingestFile   string

	registerDevice    string
	registerName      string
	registerCharacter string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Store a JSON batch of condition reports for a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestDevice == "" || ingestFile == "" {
			return fmt.Errorf("--device and --file must be provided")
		}
		return getApp().Ingest(cmd.Context(), app.IngestOptions{DeviceID: ingestDevice, Path: ingestFile})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a device and its character",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Register(cmd.Context(), app.RegisterOptions{
			DeviceID:  registerDevice,
			Name:      registerName,
			Character: registerCharacter,
		})
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDevice, "device", "", "Device id")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "JSON file of reports, - for stdin")

	registerCmd.Flags().StringVar(&registerDevice, "device", "", "Device id")
	registerCmd.Flags().StringVar(&registerName, "name", "", "Display name (defaults to the id)")
	registerCmd.Flags().StringVar(&registerCharacter, "character", "", "Device character")
}
