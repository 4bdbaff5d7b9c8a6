package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archive shards",
	Run: func(cmd *cobra.Command, args []string) {
		archives, err := newClient().Archives(context.Background())
		checkErr(err)
		if jsonOutput {
			checkErr(util.PrintJSON(os.Stdout, archives))
			return
		}
		util.PrintArchives(os.Stdout, archives)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archival status",
	Run: func(cmd *cobra.Command, args []string) {
		status, err := newClient().Status(context.Background())
		checkErr(err)
		if jsonOutput {
			checkErr(util.PrintJSON(os.Stdout, status))
			return
		}
		util.PrintStatus(os.Stdout, status)
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Run archival now",
	Run: func(cmd *cobra.Command, args []string) {
		ran, err := newClient().RunArchival(context.Background())
		checkErr(err)
		if ran {
			fmt.Println("archival run completed")
			return
		}
		fmt.Println("nothing to archive")
	},
}

func init() {
	rootCmd.AddCommand(archivesCmd, statusCmd, archiveCmd)
}
