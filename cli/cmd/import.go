package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
	"github.com/wkalt/newsledger/client"
	"golang.org/x/sync/errgroup"
)

var importWorkers int

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [glob]",
	Short: "Import submissions from JSON files matching a glob, e.g. 'feeds/**/*.json'",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		paths, err := doublestar.FilepathGlob(args[0])
		checkErr(err)
		if len(paths) == 0 {
			bailf("no files found matching %s", args[0])
		}
		n, err := doImport(context.Background(), newClient(), paths, importWorkers)
		checkErr(err)
		fmt.Printf("imported %d records from %d files\n", n, len(paths))
	},
}

// doImport submits every file's records, spreading files over workers.
// Records within a file are submitted in order.
func doImport(ctx context.Context, c *client.Client, paths []string, workers int) (int64, error) {
	var imported atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, path := range paths {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()
			submissions, err := util.ReadSubmissions(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, s := range submissions {
				if _, err := c.AddRecord(ctx, s); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				imported.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return imported.Load(), err
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.PersistentFlags().IntVarP(&importWorkers, "workers", "w", runtime.NumCPU()/2, "Concurrent files")
}
