package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show network status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status domain.NetworkStatus
	if err := newClient().get("/api/status", &status); err != nil {
		return err
	}

	connected := "no"
	if status.IsConnected {
		connected = "yes"
	}
	fmt.Printf("Connected:       %s\n", connected)
	fmt.Printf("Peers:           %d active / %d known\n", status.ActivePeers, status.TotalPeers)
	fmt.Printf("Sync:            %s\n", status.SyncStatus)
	if !status.LastSyncTime.IsZero() {
		fmt.Printf("Last sync:       %s\n", status.LastSyncTime.Local().Format("15:04:05"))
	}
	fmt.Printf("Est. latency:    %.0f ms\n", status.NetworkLatency)
	fmt.Printf("Tor:             %s", status.TorStatus)
	if status.TorEnabled {
		fmt.Printf(" (enabled)")
	}
	fmt.Println()
	return nil
}
