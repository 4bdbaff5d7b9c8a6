package util

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/wkalt/newsledger/news"
	nlutil "github.com/wkalt/newsledger/util"
)

/*
Tables print in one of two layouts. A table narrow enough for the terminal
prints as a grid under a centered header row:

	|  Index  |  Title  |
	|---------|---------|
	| 1       | hello   |

Anything wider prints as one expanded block per row, like psql's \x mode:

	-[ RECORD 1 ]+--------------------
	Index        | 1
	Title        | hello

The layouts follow the tablewriter in foxglove-cli.
*/

////////////////////////////////////////////////////////////////////////////////

var headerColor = color.New(color.FgCyan, color.Bold)

var recordHeaders = []string{"Index", "Created At", "Provider", "Category", "Tags", "Title"}

type table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// newTable sizes each column to fit its header with two spaces either side and
// its cells with one. Column slack is kept even so headers center exactly.
func newTable(headers []string, rows [][]string) *table {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = len(header) + 4
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell)+2)
		}
	}
	for i, header := range headers {
		widths[i] += (widths[i] - len(header)) % 2
	}
	return &table{headers: headers, rows: rows, widths: widths}
}

func recordRow(r news.Record) []string {
	return []string{
		strconv.FormatUint(r.Index, 10),
		nlutil.FormatNanos(r.CreatedAt),
		r.Provider,
		r.Category,
		strings.Join(r.Tags, ","),
		r.Title,
	}
}

func recordTable(records []news.Record) *table {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return newTable(recordHeaders, rows)
}

// width is the grid's total width, borders included.
func (t *table) width() int {
	total := len(t.widths) + 1
	for _, w := range t.widths {
		total += w
	}
	return total
}

func (t *table) print(w io.Writer) {
	termWidth := terminalWidth()
	if t.width() > termWidth {
		t.writeExpanded(w, termWidth)
		return
	}
	t.writeGrid(w)
}

func (t *table) writeGrid(w io.Writer) {
	sb := &strings.Builder{}
	sb.WriteString("|")
	for i, header := range t.headers {
		pad := strings.Repeat(" ", (t.widths[i]-len(header))/2)
		sb.WriteString(pad + headerColor.Sprint(header) + pad + "|")
	}
	sb.WriteString("\n|")
	for _, width := range t.widths {
		sb.WriteString(strings.Repeat("-", width) + "|")
	}
	sb.WriteString("\n")
	for _, row := range t.rows {
		sb.WriteString("|")
		for i, cell := range row {
			sb.WriteString(" " + cell + strings.Repeat(" ", t.widths[i]-len(cell)-1) + "|")
		}
		sb.WriteString("\n")
	}
	_, _ = io.WriteString(w, sb.String())
}

// writeExpanded writes each row as a labeled block. The rule after each block
// title runs fifteen columns past the longest cell, or to the terminal edge.
func (t *table) writeExpanded(w io.Writer, termWidth int) {
	label := len(blockTitle(len(t.rows)))
	for _, header := range t.headers {
		label = max(label, len(header))
	}
	longest := 0
	for _, row := range t.rows {
		for _, cell := range row {
			longest = max(longest, len(cell))
		}
	}
	rule := max(min(longest+15, termWidth-label-1), 1)
	for i, row := range t.rows {
		title := blockTitle(i + 1)
		fmt.Fprintf(w, "%s%s+%s\n", title, strings.Repeat("-", label-len(title)), strings.Repeat("-", rule))
		for j, cell := range row {
			fmt.Fprintf(w, "%s%s| %-*s\n",
				headerColor.Sprint(t.headers[j]), strings.Repeat(" ", label-len(t.headers[j])), rule-1, cell)
		}
	}
}

func blockTitle(n int) string {
	return fmt.Sprintf("-[ RECORD %d ]", n)
}

func terminalWidth() int {
	if width := readline.GetScreenWidth(); width > 0 {
		return width
	}
	return 80
}
