package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
	"github.com/wkalt/newsledger/client"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/session"
)

var (
	tailClient     string
	tailCategories []string
	tailTags       []string
	tailInterval   time.Duration
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow new records as they are added",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if tailClient == "" {
			host, _ := os.Hostname()
			tailClient = fmt.Sprintf("tail-%s-%d", host, os.Getpid())
		}
		c := newClient()
		info, err := c.OpenSession(ctx, tailClient, session.Filter{
			Categories: tailCategories,
			Tags:       tailTags,
		})
		checkErr(err)
		defer func() {
			if _, err := c.CloseSession(context.WithoutCancel(ctx), info.ID); err != nil && !errors.Is(err, news.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "error closing session: %s\n", err)
			}
		}()
		if err := follow(ctx, c, info.ID, tailInterval); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
	},
}

// follow polls the session until ctx is canceled or the server announces a
// shutdown.
func follow(ctx context.Context, c *client.Client, id string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var after uint64
	for {
		batch, err := c.Poll(ctx, id, after)
		if err != nil {
			return err
		}
		for _, m := range batch.Messages {
			if jsonOutput {
				if err := util.PrintJSON(os.Stdout, m); err != nil {
					return err
				}
			} else {
				util.PrintMessage(os.Stdout, m)
			}
			if _, ok := m.Payload.(session.Text); ok {
				return nil
			}
		}
		after = batch.Next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	rootCmd.AddCommand(tailCmd)

	tailCmd.PersistentFlags().StringVarP(&tailClient, "client", "", "", "Client name (defaults to host and pid)")
	tailCmd.PersistentFlags().StringSliceVarP(&tailCategories, "category", "c", []string{}, "Categories to follow")
	tailCmd.PersistentFlags().StringSliceVarP(&tailTags, "tag", "t", []string{}, "Tags to follow")
	tailCmd.PersistentFlags().DurationVarP(&tailInterval, "interval", "i", 500*time.Millisecond, "Poll interval")
}
