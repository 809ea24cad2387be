package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/advert"
	"github.com/crumbnet/crumb/internal/daemon"
	"github.com/crumbnet/crumb/internal/security"
)

func init() {
	shareCmd.Flags().BoolVar(&shareNoQR, "no-qr", false, "Print only the link, skip the QR code")
	rootCmd.AddCommand(shareCmd)
}

var shareNoQR bool

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Show this node's pairing code",
	Long: `Print a QR code and share link other crumb users can scan or paste
to connect to this node. Codes expire after one hour.`,
	RunE: runShare,
}

func runShare(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	kp, err := security.LoadOrCreateKeypair(daemon.CrumbHome())
	if err != nil {
		return err
	}

	ad := &advert.Advertisement{
		NodeID:       kp.NodeID(),
		Address:      localIP(),
		Port:         cfg.Network.ListenPort,
		PublicKey:    kp.PublicKeyHex(),
		Capabilities: []string{"post_sync"},
		Timestamp:    time.Now(),
	}

	if !shareNoQR {
		if err := advert.RenderQR(os.Stdout, ad); err != nil {
			return err
		}
		fmt.Println()
	}
	fmt.Printf("Link:    %s\n", ad.EncodeURI())
	fmt.Printf("Node:    %s\n", ad.NodeID)
	fmt.Printf("Expires: %s\n", ad.Timestamp.Add(advert.MaxAge).Local().Format("15:04:05"))
	return nil
}
