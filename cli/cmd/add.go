package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
	"github.com/wkalt/newsledger/news"
)

var (
	addProvider string
	addCategory string
	addTags     []string
	addTitle    string
	addBody     string
	addURL      string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add categories, tags, and records",
}

var addCategoryCmd = &cobra.Command{
	Use:   "category [name]",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		checkErr(newClient().AddCategory(context.Background(), args[0]))
	},
}

var addTagCmd = &cobra.Command{
	Use:   "tag [name]",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		checkErr(newClient().AddTag(context.Background(), args[0]))
	},
}

var addRecordCmd = &cobra.Command{
	Use:   "record --provider wire --category sports --title 'headline' [--tag t]...",
	Short: "Submit a news record",
	Run: func(cmd *cobra.Command, args []string) {
		record, err := newClient().AddRecord(context.Background(), news.Submission{
			Provider: addProvider,
			Category: addCategory,
			Tags:     addTags,
			Title:    addTitle,
			Body:     addBody,
			URL:      addURL,
		})
		checkErr(err)
		if jsonOutput {
			checkErr(util.PrintJSON(os.Stdout, record))
			return
		}
		fmt.Printf("added record %d (%s)\n", record.Index, record.Hash)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.AddCommand(addCategoryCmd, addTagCmd, addRecordCmd)

	addRecordCmd.PersistentFlags().StringVarP(&addProvider, "provider", "p", "", "Provider name")
	addRecordCmd.PersistentFlags().StringVarP(&addCategory, "category", "c", "", "Category")
	addRecordCmd.PersistentFlags().StringArrayVarP(&addTags, "tag", "t", []string{}, "Tag (repeatable)")
	addRecordCmd.PersistentFlags().StringVarP(&addTitle, "title", "", "", "Title")
	addRecordCmd.PersistentFlags().StringVarP(&addBody, "body", "b", "", "Body")
	addRecordCmd.PersistentFlags().StringVarP(&addURL, "url", "u", "", "Source URL")

	addRecordCmd.MarkPersistentFlagRequired("provider")
	addRecordCmd.MarkPersistentFlagRequired("category")
}
