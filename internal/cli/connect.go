package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/domain"
)

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(syncCmd)
}

var connectCmd = &cobra.Command{
	Use:   "connect <code or host:port>",
	Short: "Connect to a peer by pairing code or address",
	Long: `Connect to a peer. The argument is either a pairing code in any
supported form (JSON, crumb:// URI, pipe-delimited) or a bare host:port.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	target := args[0]

	// A bare host:port dials directly; anything else is a pairing code.
	if host, portStr, err := net.SplitHostPort(target); err == nil {
		if port, perr := strconv.Atoi(portStr); perr == nil {
			var out struct {
				Connected bool `json:"connected"`
			}
			if err := newClient().post("/api/connect", map[string]interface{}{
				"address": host,
				"port":    port,
			}, &out); err != nil {
				return err
			}
			fmt.Printf("Connected to %s\n", target)
			return nil
		}
	}

	var peer domain.PeerInfo
	if err := newClient().post("/api/connect", map[string]string{
		"code": target,
	}, &peer); err != nil {
		return err
	}
	fmt.Printf("Connected to %s (%s)\n", peer.NodeID, peer.Endpoint())
	return nil
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a discovery pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			Peers []domain.PeerInfo `json:"peers"`
		}
		if err := newClient().post("/api/discover", struct{}{}, &out); err != nil {
			return err
		}
		fmt.Printf("%d peers known\n", len(out.Peers))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().post("/api/sync", struct{}{}, nil); err != nil {
			return err
		}
		fmt.Println("Sync requested.")
		return nil
	},
}
