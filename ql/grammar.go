package ql

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/relvacode/iso8601"
)

/*
This file contains a participle grammar for the newsledger query language. The
language is a thin, line-oriented front end over the ledger's read surface,
used by the interactive shell and the /query endpoint. Examples:

	count
	get 42
	hash "9f86d081884c7d65..."
	latest 10
	category "sports" offset 20 limit 10
	tag breaking limit 5
	since "2024-03-01T00:00:00Z" limit 50
	archives
	status
*/

////////////////////////////////////////////////////////////////////////////////

var (
	Options = []participle.Option{ // nolint:gochecknoglobals
		participle.Lexer(
			lexer.MustSimple([]lexer.SimpleRule{
				{Name: "Word", Pattern: `[a-zA-Z_][a-zA-Z0-9_\.-]*`},
				{Name: "QuotedString", Pattern: `"(?:\\.|[^"])*"`},
				{Name: "whitespace", Pattern: `\s+`},
				{Name: "Operators", Pattern: `;`},
				{Name: "Integer", Pattern: `[0-9]+`},
			}),
		),
		participle.Unquote("QuotedString"),
		participle.CaseInsensitive("Word"),
	}
)

// Query represents a query in the newsledger query language.
type Query struct {
	Statement  Statement `@@`
	Terminator string    `";"?`
}

// Statement is exactly one of the query forms.
type Statement struct {
	Count    bool     `  @"count"`
	Get      *uint64  `| "get" @Integer`
	Hash     *string  `| "hash" @(QuotedString | Word)`
	Latest   *int     `| "latest" @Integer`
	Category *Listing `| "category" @@`
	Tag      *Listing `| "tag" @@`
	Since    *Since   `| "since" @@`
	Archives bool     `| @"archives"`
	Status   bool     `| @"status"`
}

// Listing names a category or tag with optional paging.
type Listing struct {
	Name   string       `@(QuotedString | Word)`
	Paging []PagingTerm `@@*`
}

// Since is a creation-time scan.
type Since struct {
	Begin  Timestamp    `@@`
	Paging []PagingTerm `@@*`
}

// Timestamp represents a timestamp.
type Timestamp struct {
	Nanoseconds *uint64 `( @Integer`
	Datestring  *string `| @QuotedString )`
}

// Nanos returns the timestamp in nanoseconds.
func (t Timestamp) Nanos() (uint64, error) {
	if t.Nanoseconds != nil {
		return *t.Nanoseconds, nil
	}
	time, err := iso8601.Parse([]byte(*t.Datestring))
	if err != nil {
		return 0, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if time.UnixNano() < 0 {
		return 0, fmt.Errorf("timestamp %s precedes the epoch", *t.Datestring)
	}
	return uint64(time.UnixNano()), nil
}

// PagingTerm represents a limit/offset term.
type PagingTerm struct {
	Keyword string `@("limit" | "offset")`
	Value   int    `@Integer`
}

// NewParser returns a new query parser.
func NewParser() *participle.Parser[Query] {
	return participle.MustBuild[Query](Options...)
}
