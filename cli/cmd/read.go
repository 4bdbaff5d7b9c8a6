package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
)

var (
	readOffset int
	readLimit  int
	latestN    int
	getByHash  bool
)

func printRecords(records []news.Record) {
	if jsonOutput {
		checkErr(util.PrintJSON(os.Stdout, records))
		return
	}
	util.PrintRecords(os.Stdout, records)
}

func printPage(page news.Page) {
	if jsonOutput {
		checkErr(util.PrintJSON(os.Stdout, page))
		return
	}
	util.PrintPage(os.Stdout, page, readOffset)
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the total number of records",
	Run: func(cmd *cobra.Command, args []string) {
		count, err := newClient().Count(context.Background())
		checkErr(err)
		fmt.Println(count)
	},
}

var getCmd = &cobra.Command{
	Use:   "get [index | --hash hash]",
	Short: "Get a single record by index or content hash",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c := newClient()
		var record news.Record
		var err error
		if getByHash {
			record, err = c.GetByHash(ctx, args[0])
		} else {
			index, perr := strconv.ParseUint(args[0], 10, 64)
			if perr != nil {
				bailf("invalid index: %s", args[0])
			}
			record, err = c.Get(ctx, index)
		}
		checkErr(err)
		if jsonOutput {
			checkErr(util.PrintJSON(os.Stdout, record))
			return
		}
		util.PrintRecord(os.Stdout, record)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recent records",
	Run: func(cmd *cobra.Command, args []string) {
		records, err := newClient().Latest(context.Background(), latestN)
		checkErr(err)
		printRecords(records)
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category [name]",
	Short: "List records in a category, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c := newClient()
		if len(args) == 0 {
			names, err := c.Categories(ctx)
			checkErr(err)
			printNames(names)
			return
		}
		page, err := c.ByCategory(ctx, args[0], readOffset, readLimit)
		checkErr(err)
		printPage(page)
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag [name]",
	Short: "List records carrying a tag, newest first",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		c := newClient()
		if len(args) == 0 {
			names, err := c.Tags(ctx)
			checkErr(err)
			printNames(names)
			return
		}
		page, err := c.ByTag(ctx, args[0], readOffset, readLimit)
		checkErr(err)
		printPage(page)
	},
}

var sinceCmd = &cobra.Command{
	Use:   "since [timestamp]",
	Short: "List records created at or after a timestamp (nanoseconds or ISO 8601)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		records, err := newClient().Since(context.Background(), args[0], readLimit)
		checkErr(err)
		printRecords(records)
	},
}

func printNames(names []string) {
	if jsonOutput {
		checkErr(util.PrintJSON(os.Stdout, names))
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func init() {
	rootCmd.AddCommand(countCmd, getCmd, latestCmd, categoryCmd, tagCmd, sinceCmd)

	getCmd.PersistentFlags().BoolVarP(&getByHash, "hash", "", false, "Look up by content hash")
	latestCmd.PersistentFlags().IntVarP(&latestN, "count", "n", ql.DefaultLimit, "Number of records")
	for _, c := range []*cobra.Command{categoryCmd, tagCmd} {
		c.PersistentFlags().IntVarP(&readOffset, "offset", "", 0, "Offset")
	}
	for _, c := range []*cobra.Command{categoryCmd, tagCmd, sinceCmd} {
		c.PersistentFlags().IntVarP(&readLimit, "limit", "", ql.DefaultLimit, "Limit")
	}
}
