package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/client"
)

var (
	serverURL  string
	sharedKey  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "newsledger",
	Short: "newsledger client and server",
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.New(serverURL, sharedKey)
}

func bailf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func checkErr(err error) {
	if err != nil {
		bailf("error: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server-url", "", "http://localhost:8089", "server-url")
	rootCmd.PersistentFlags().StringVarP(&sharedKey, "shared-key", "", "", "shared key to use for authentication")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "", false, "Output in JSON format")
}
