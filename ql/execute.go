package ql

import (
	"context"
	"fmt"

	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/scheduler"
)

// DefaultLimit is the page size used when a query has no limit term.
const DefaultLimit = 10

// Target is the read surface a query executes against.
type Target interface {
	TotalCount() uint64
	GetByIndex(ctx context.Context, i uint64) (news.Record, error)
	GetByHash(ctx context.Context, hash string) (news.Record, error)
	Latest(ctx context.Context, n int) ([]news.Record, error)
	ByCategory(ctx context.Context, name string, offset, limit int) (news.Page, error)
	ByTag(ctx context.Context, name string, offset, limit int) (news.Page, error)
	ByTime(ctx context.Context, begin uint64, limit int) ([]news.Record, error)
	Archives() []directory.Descriptor
	TaskStatus() scheduler.Status
}

// Result kinds.
const (
	KindCount    = "count"
	KindRecord   = "record"
	KindRecords  = "records"
	KindPage     = "page"
	KindArchives = "archives"
	KindStatus   = "status"
)

// Result is the outcome of a query. Kind says which field is set.
type Result struct {
	Kind     string                 `json:"kind"`
	Count    *uint64                `json:"count,omitempty"`
	Record   *news.Record           `json:"record,omitempty"`
	Records  []news.Record          `json:"records,omitempty"`
	Page     *news.Page             `json:"page,omitempty"`
	Archives []directory.Descriptor `json:"archives,omitempty"`
	Status   *scheduler.Status      `json:"status,omitempty"`
}

// Execute parses and runs a query. Syntax errors wrap news.ErrInvalidArgument.
func Execute(ctx context.Context, target Target, query string) (*Result, error) {
	ast, err := NewParser().ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", news.ErrInvalidArgument, err)
	}
	return Run(ctx, target, ast)
}

// Run executes a parsed query.
func Run(ctx context.Context, target Target, query *Query) (*Result, error) {
	stmt := query.Statement
	switch {
	case stmt.Count:
		count := target.TotalCount()
		return &Result{Kind: KindCount, Count: &count}, nil
	case stmt.Get != nil:
		record, err := target.GetByIndex(ctx, *stmt.Get)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRecord, Record: &record}, nil
	case stmt.Hash != nil:
		record, err := target.GetByHash(ctx, *stmt.Hash)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRecord, Record: &record}, nil
	case stmt.Latest != nil:
		records, err := target.Latest(ctx, *stmt.Latest)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRecords, Records: records}, nil
	case stmt.Category != nil:
		return listing(ctx, stmt.Category, target.ByCategory)
	case stmt.Tag != nil:
		return listing(ctx, stmt.Tag, target.ByTag)
	case stmt.Since != nil:
		begin, err := stmt.Since.Begin.Nanos()
		if err != nil {
			return nil, fmt.Errorf("%w: %s", news.ErrInvalidArgument, err)
		}
		offset, limit, err := paging(stmt.Since.Paging)
		if err != nil {
			return nil, err
		}
		if offset != 0 {
			return nil, fmt.Errorf("%w: since does not accept an offset", news.ErrInvalidArgument)
		}
		records, err := target.ByTime(ctx, begin, limit)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindRecords, Records: records}, nil
	case stmt.Archives:
		return &Result{Kind: KindArchives, Archives: target.Archives()}, nil
	case stmt.Status:
		status := target.TaskStatus()
		return &Result{Kind: KindStatus, Status: &status}, nil
	default:
		return nil, fmt.Errorf("%w: empty statement", news.ErrInvalidArgument)
	}
}

func listing(
	ctx context.Context,
	l *Listing,
	query func(ctx context.Context, name string, offset, limit int) (news.Page, error),
) (*Result, error) {
	offset, limit, err := paging(l.Paging)
	if err != nil {
		return nil, err
	}
	page, err := query(ctx, l.Name, offset, limit)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindPage, Page: &page}, nil
}

func paging(terms []PagingTerm) (offset, limit int, err error) {
	limit = DefaultLimit
	seen := map[string]bool{}
	for _, term := range terms {
		if seen[term.Keyword] {
			return 0, 0, fmt.Errorf("%w: duplicate %s", news.ErrInvalidArgument, term.Keyword)
		}
		seen[term.Keyword] = true
		switch term.Keyword {
		case "limit":
			limit = term.Value
		case "offset":
			offset = term.Value
		}
	}
	return offset, limit, nil
}
