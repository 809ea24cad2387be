package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/domain"
)

func init() {
	peersCmd.Flags().BoolVar(&peersActiveOnly, "active", false, "Show only active peers")
	rootCmd.AddCommand(peersCmd)
}

var peersActiveOnly bool

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List known peers",
	RunE:  runPeers,
}

func runPeers(cmd *cobra.Command, args []string) error {
	path := "/api/peers"
	if peersActiveOnly {
		path = "/api/peers/active"
	}

	var out struct {
		Peers []domain.PeerInfo `json:"peers"`
	}
	if err := newClient().get(path, &out); err != nil {
		return err
	}

	if len(out.Peers) == 0 {
		fmt.Println("No peers known. Pair with 'crumb connect' or wait for discovery.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tENDPOINT\tQUALITY\tACTIVE\tLAST SEEN")
	for _, p := range out.Peers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			p.NodeID,
			p.Endpoint(),
			p.Quality,
			p.IsActive,
			p.LastSeen.Local().Format("15:04:05"),
		)
	}
	return w.Flush()
}
