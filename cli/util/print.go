package util

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/session"
	nlutil "github.com/wkalt/newsledger/util"
)

/*
Output formatting for CLI results. Everything prints either as a table or, in
JSON mode, as one JSON value per line.
*/

////////////////////////////////////////////////////////////////////////////////

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// PrintJSON writes v as a single line of JSON.
func PrintJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// PrintRecords prints records as a table.
func PrintRecords(w io.Writer, records []news.Record) {
	recordTable(records).print(w)
}

// PrintRecord prints a single record in expanded form, including its body.
func PrintRecord(w io.Writer, r news.Record) {
	headers := append(recordHeaders[:len(recordHeaders):len(recordHeaders)], "Hash", "URL", "Body")
	row := append(recordRow(r), r.Hash, r.URL, r.Body)
	newTable(headers, [][]string{row}).writeExpanded(w, terminalWidth())
}

// PrintPage prints a page of records followed by the total match count.
func PrintPage(w io.Writer, page news.Page, offset int) {
	PrintRecords(w, page.Content)
	fmt.Fprintf(w, "(%d-%d of %d)\n", offset+min(1, len(page.Content)), offset+len(page.Content), page.TotalElements)
}

// PrintArchives prints archive descriptors as a table.
func PrintArchives(w io.Writer, archives []directory.Descriptor) {
	headers := []string{"Handle", "Start", "End", "Count", "Min Time", "Max Time", "Created At"}
	rows := make([][]string, 0, len(archives))
	for _, d := range archives {
		rows = append(rows, []string{
			d.Handle,
			strconv.FormatUint(d.Start, 10),
			strconv.FormatUint(d.End, 10),
			strconv.FormatUint(d.Count, 10),
			nlutil.FormatNanos(d.MinTime),
			nlutil.FormatNanos(d.MaxTime),
			d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	newTable(headers, rows).print(w)
}

// PrintStatus prints the archival scheduler's status.
func PrintStatus(w io.Writer, status scheduler.Status) {
	state := okColor.Sprint("idle")
	switch {
	case status.Halted:
		state = failColor.Sprint("halted")
	case status.Running:
		state = warnColor.Sprint("transferring")
	}
	lastRun := "never"
	if !status.LastRun.IsZero() {
		lastRun = status.LastRun.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "state:      %s\n", state)
	fmt.Fprintf(w, "last run:   %s\n", lastRun)
	fmt.Fprintf(w, "runs:       %d (%d failed)\n", status.Runs, status.Failures)
	fmt.Fprintf(w, "archived:   %d records\n", status.Archived)
	if status.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", failColor.Sprint(status.LastError))
	}
}

// PrintMessage prints one session message on a single line.
func PrintMessage(w io.Writer, m session.Message) {
	seq := warnColor.Sprintf("[%d]", m.Sequence)
	switch p := m.Payload.(type) {
	case session.RecordAdded:
		r := p.Record
		fmt.Fprintf(w, "%s %s %d %s/%s %s\n", seq, nlutil.FormatNanos(r.CreatedAt), r.Index, r.Provider, r.Category, r.Title)
	case session.Gap:
		fmt.Fprintf(w, "%s %s\n", seq, failColor.Sprintf("missed messages %d-%d", p.From, p.To))
	case session.Text:
		fmt.Fprintf(w, "%s %s\n", seq, okColor.Sprint(p.Text))
	}
}

// PrintResult prints the result of a query according to its kind.
func PrintResult(w io.Writer, result *ql.Result) {
	switch result.Kind {
	case ql.KindCount:
		fmt.Fprintln(w, *result.Count)
	case ql.KindRecord:
		PrintRecord(w, *result.Record)
	case ql.KindRecords:
		PrintRecords(w, result.Records)
	case ql.KindPage:
		PrintRecords(w, result.Page.Content)
		fmt.Fprintf(w, "(%d total)\n", result.Page.TotalElements)
	case ql.KindArchives:
		PrintArchives(w, result.Archives)
	case ql.KindStatus:
		PrintStatus(w, *result.Status)
	default:
		fmt.Fprintf(w, "unrecognized result kind %q\n", result.Kind)
	}
}
