package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(torCmd)
}

var torCmd = &cobra.Command{
	Use:       "tor <on|off|status>",
	Short:     "Control Tor routing",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "status"},
	RunE:      runTor,
}

func runTor(cmd *cobra.Command, args []string) error {
	var out struct {
		Enabled bool   `json:"enabled"`
		Status  string `json:"status"`
	}

	switch args[0] {
	case "status":
		if err := newClient().get("/api/tor", &out); err != nil {
			return err
		}
	case "on", "off":
		if err := newClient().do("PUT", "/api/tor", map[string]bool{
			"enabled": args[0] == "on",
		}, &out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown argument %q (want on, off, or status)", args[0])
	}

	fmt.Printf("Tor: %s", out.Status)
	if out.Enabled {
		fmt.Printf(" (enabled)")
	}
	fmt.Println()
	return nil
}
