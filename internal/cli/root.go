// Package cli implements the crumb command-line interface using Cobra.
// Most subcommands talk to the running daemon over its local HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crumb",
	Short: "An anonymous peer-to-peer feed",
	Long: `crumb is a decentralized social feed client.
Posts spread peer to peer under pseudonyms, with no servers and no accounts.

Start the daemon with 'crumb serve', then post, follow peers, and share
your node's pairing code from any terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
