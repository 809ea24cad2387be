package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/daemon"
	"github.com/crumbnet/crumb/internal/domain"
)

func init() {
	postCmd.Flags().StringVar(&postPseudonym, "as", "", "Pseudonym to post under (overrides config)")
	rootCmd.AddCommand(postCmd)
}

var postPseudonym string

var postCmd = &cobra.Command{
	Use:   "post [text]",
	Short: "Publish a post to the feed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPost,
}

func runPost(cmd *cobra.Command, args []string) error {
	pseudonym := postPseudonym
	if pseudonym == "" {
		cfg, _ := daemon.LoadConfig()
		pseudonym = cfg.Node.Pseudonym
	}

	var post domain.Post
	err := newClient().post("/api/posts", map[string]string{
		"content":   strings.Join(args, " "),
		"pseudonym": pseudonym,
	}, &post)
	if err != nil {
		return err
	}

	fmt.Printf("Posted as %s (%s)\n", post.Pseudonym, post.ID)
	return nil
}
