package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveTor, "tor", false, "Route peer traffic through Tor")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
	serveTor  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the crumb daemon",
	Long:  `Start the network coordinator and the local API at localhost:8787.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}
	if serveTor {
		d.Config.Network.EnableTor = true
	}

	return d.Serve(context.Background())
}
