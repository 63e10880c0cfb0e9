// Carlink-bridge drives CarPlay and Android Auto USB dongles.
//
// It claims the dongle over USB, runs the projection session (video,
// audio, input, microphone), and keeps the connection alive across
// dongle failures. An optional monitor server streams session events to
// frontends over WebSocket and accepts basic control requests.
//
// Usage:
//
//	carlink-bridge run [flags]
//
// See 'carlink-bridge run --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/carlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "carlink-bridge",
	Short: "CarPlay / Android Auto dongle bridge",
	Long: `A bridge for CarPlay and Android Auto USB dongles.

The bridge claims the dongle over USB, negotiates the projection session,
and moves video, audio, and input between the phone and the host. If the
dongle fails it reconnects automatically with exponential backoff.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("carlink-bridge %s (commit: %s)\n", version.Version, version.Commit)
	},
}
