// Airctrl is a command-line utility for Philips air purifiers.
//
// It talks the purifier's encrypted CoAP protocol directly over the
// local network: reading status, changing settings, and streaming
// live status updates. No cloud account or hardware modification is
// required.
//
// Usage:
//
//	airctrl [command] [flags]
//
// See 'airctrl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airctrl/airctrl/internal/logging"
	"github.com/airctrl/airctrl/internal/ui"
	"github.com/airctrl/airctrl/internal/version"
)

func main() {
	logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "airctrl",
	Short: "Philips Air Purifier Control Utility",
	Long: `A standalone utility for controlling Philips air purifiers over CoAP.

Reads device status, changes settings, and streams live status updates
directly over the local network. Devices can be addressed by IP with
--host, or saved under a name with 'airctrl device add' and selected
with --device.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("airctrl %s\n", version.Full())
	},
}
