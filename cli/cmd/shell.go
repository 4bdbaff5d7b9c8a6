package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/newsledger/cli/util"
	"github.com/wkalt/newsledger/client"
)

const (
	prompt         = "news # "
	continuePrompt = "...  # "
	artwork        = `
 _ __   _____      _____| | ___  __| | __ _  ___ _ __
| '_ \ / _ \ \ /\ / / __| |/ _ \/ _` + "`" + ` |/ _` + "`" + ` |/ _ \ '__|
| | | |  __/\ V  V /\__ \ |  __/ (_| | (_| |  __/ |
|_| |_|\___| \_/\_/ |___/_|\___|\__,_|\__, |\___|_|
                                      |___/
`
)

var errorColor = color.New(color.FgRed)

func printError(s string) {
	errorColor.Println("ERROR: " + s)
}

func executeQuery(ctx context.Context, c *client.Client, query string) error {
	result, err := c.Query(ctx, query)
	if err != nil {
		return err
	}
	if jsonOutput {
		return util.PrintJSON(os.Stdout, result)
	}
	util.PrintResult(os.Stdout, result)
	return nil
}

func handleImport(ctx context.Context, c *client.Client, line string) error {
	parts := strings.Fields(line)[1:]
	if len(parts) != 1 {
		return errors.New("usage: \\import glob")
	}
	paths, err := doublestar.FilepathGlob(parts[0])
	if err != nil {
		return fmt.Errorf("error globbing: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files found matching %s", parts[0])
	}
	n, err := doImport(ctx, c, paths, runtime.NumCPU()/2)
	fmt.Printf("imported %d records from %d files\n", n, len(paths))
	return err
}

func runShell() error {
	ctx := context.Background()
	c := newClient()
	l, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     "/tmp/newsledger-history.tmp",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		VimMode:         false,
	})
	if err != nil {
		return err
	}
	fmt.Print(artwork)
	fmt.Println(`Type "help" for help.`)
	fmt.Println()
	defer l.Close()
	l.CaptureExitSignal()

	lines := []string{}
	for {
		line, err := l.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				lines = lines[:0]
				l.SetPrompt(prompt)
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "help", strings.HasPrefix(line, "\\h"):
			_, topic, _ := strings.Cut(line, " ")
			fmt.Println(help[topic])
			continue
		case line == "\\q":
			return nil
		case strings.HasPrefix(line, "\\import"):
			if err := handleImport(ctx, c, line); err != nil {
				printError(err.Error())
			}
			continue
		case strings.HasPrefix(line, "\\"):
			printError("unrecognized command: " + line)
			continue
		}

		lines = append(lines, line)
		if !strings.HasSuffix(line, ";") {
			l.SetPrompt(continuePrompt)
			continue
		}
		query := strings.Join(lines, " ")
		lines = lines[:0]
		l.SetPrompt(prompt)
		if err := l.SaveHistory(query); err != nil {
			printError(err.Error())
		}
		if err := executeQuery(ctx, c, query); err != nil {
			printError(err.Error())
		}
	}
	return nil
}

var help = map[string]string{
	"": `The newsledger shell is an interactive interpreter for newsledger.

The shell accepts queries and slash commands. The supported slash commands are:

  \h [topic] to print help text. If topic is blank, prints this text.
  \import to import submissions from JSON files
  \q to quit

Available help topics are:
  query: Show examples of query syntax.
  import: Explain the \import command.

Any input aside from "help" that does not start with a backslash is interpreted
as a query. Queries are terminated with a semicolon.`,

	"query": `Queries read from both the hot buffer and the archive as one index
space. Keywords are case insensitive and queries may span lines.

Count all records:
    count;

Fetch one record by index or content hash:
    get 42;
    hash "9f86d081884c7d65";

The five most recent records, newest first:
    latest 5;

Page through a category or tag, newest first:
    category "sports" limit 10;
    tag "breaking" offset 20 limit 10;

Records created at or after a time, oldest first:
    since "2024-03-01T00:00:00Z" limit 50;
    since 1709251200000000000;

Archive shards and archival status:
    archives;
    status;

Limits above 100 are clamped to 100.`,

	"import": `The \import command submits records from JSON files. The syntax is:
  \import glob

For example,
  \import feeds/**/*.json

Each file holds one submission object or an array of them, with the fields
provider, category, tags, title, body, and url. Files are spread over
cpucount/2 workers; records within a file are submitted in order.`,
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "newsledger interactive shell",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runShell(); err != nil {
			fmt.Println("error running shell:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
