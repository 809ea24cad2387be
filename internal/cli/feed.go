package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crumbnet/crumb/internal/domain"
)

func init() {
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 0, "Show at most n posts (0 = all)")
	rootCmd.AddCommand(feedCmd)
}

var feedLimit int

var feedCmd = &cobra.Command{
	Use:     "posts",
	Aliases: []string{"feed"},
	Short:   "Show the feed, newest first",
	RunE:    runFeed,
}

func runFeed(cmd *cobra.Command, args []string) error {
	var out struct {
		Posts []domain.Post `json:"posts"`
	}
	if err := newClient().get("/api/posts", &out); err != nil {
		return err
	}

	if len(out.Posts) == 0 {
		fmt.Println("The feed is empty. Post something with 'crumb post'.")
		return nil
	}

	posts := out.Posts
	if feedLimit > 0 && len(posts) > feedLimit {
		posts = posts[:feedLimit]
	}

	for _, p := range posts {
		fmt.Printf("%s  ~%s\n%s\n\n",
			p.Timestamp.Local().Format("2006-01-02 15:04"),
			p.Pseudonym,
			p.Content,
		)
	}
	return nil
}
