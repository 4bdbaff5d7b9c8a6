package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/wkalt/newsledger/directory"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/routes"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/session"
	"github.com/wkalt/newsledger/util/httputil"
)

/*
Package client is a typed HTTP client for the newsledger server.
*/

////////////////////////////////////////////////////////////////////////////////

// APIError is a non-2xx response from the server.
type APIError struct {
	Code   int
	err    string
	detail string
}

func (e APIError) Error() string {
	return e.err
}

// Detail returns the server-supplied detail message, if any.
func (e APIError) Detail() string {
	return e.detail
}

// Is maps status codes back onto the ledger's sentinel errors.
func (e APIError) Is(target error) bool {
	switch e.Code {
	case http.StatusNotFound:
		return target == news.ErrNotFound
	case http.StatusBadRequest:
		return target == news.ErrInvalidArgument
	case http.StatusConflict:
		return target == ledger.ErrAlreadyExists
	}
	return false
}

// Client talks to a newsledger server.
type Client struct {
	serverURL string
	httpc     *http.Client
}

// New constructs a client. An empty shared key sends no Authorization header.
func New(serverURL, sharedKey string) *Client {
	return &Client{
		serverURL: serverURL,
		httpc:     NewHTTPClient(sharedKey),
	}
}

// Count returns the total number of records.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	resp := routes.CountResponse{}
	if err := c.do(ctx, http.MethodGet, "/news/count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Get returns the record at index.
func (c *Client) Get(ctx context.Context, index uint64) (news.Record, error) {
	record := news.Record{}
	path := "/news/" + strconv.FormatUint(index, 10)
	err := c.do(ctx, http.MethodGet, path, nil, nil, &record)
	return record, err
}

// GetByHash returns the record with the supplied content hash.
func (c *Client) GetByHash(ctx context.Context, hash string) (news.Record, error) {
	record := news.Record{}
	err := c.do(ctx, http.MethodGet, "/news/hash/"+url.PathEscape(hash), nil, nil, &record)
	return record, err
}

// Latest returns up to n of the most recent records, newest first.
func (c *Client) Latest(ctx context.Context, n int) ([]news.Record, error) {
	records := []news.Record{}
	params := url.Values{"n": {strconv.Itoa(n)}}
	err := c.do(ctx, http.MethodGet, "/news/latest", params, nil, &records)
	return records, err
}

// Since returns up to limit records created at or after begin, which is
// nanoseconds or an ISO 8601 string.
func (c *Client) Since(ctx context.Context, begin string, limit int) ([]news.Record, error) {
	records := []news.Record{}
	params := url.Values{"begin": {begin}, "limit": {strconv.Itoa(limit)}}
	err := c.do(ctx, http.MethodGet, "/news/since", params, nil, &records)
	return records, err
}

// AddRecord submits a record.
func (c *Client) AddRecord(ctx context.Context, s news.Submission) (news.Record, error) {
	record := news.Record{}
	req := routes.AddRecordRequest{
		Provider: s.Provider,
		Category: s.Category,
		Tags:     s.Tags,
		Title:    s.Title,
		Body:     s.Body,
		URL:      s.URL,
	}
	err := c.do(ctx, http.MethodPost, "/news", nil, req, &record)
	return record, err
}

// Categories lists categories.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	names := []string{}
	err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &names)
	return names, err
}

// Tags lists tags.
func (c *Client) Tags(ctx context.Context) ([]string, error) {
	names := []string{}
	err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &names)
	return names, err
}

// AddCategory creates a category.
func (c *Client) AddCategory(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/categories", nil, routes.NameRequest{Name: name}, nil)
}

// AddTag creates a tag.
func (c *Client) AddTag(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/tags", nil, routes.NameRequest{Name: name}, nil)
}

// ByCategory returns a page of records in the category, newest first.
func (c *Client) ByCategory(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	return c.listing(ctx, "/categories/"+url.PathEscape(name)+"/news", offset, limit)
}

// ByTag returns a page of records carrying the tag, newest first.
func (c *Client) ByTag(ctx context.Context, name string, offset, limit int) (news.Page, error) {
	return c.listing(ctx, "/tags/"+url.PathEscape(name)+"/news", offset, limit)
}

// Archives lists archive shard descriptors.
func (c *Client) Archives(ctx context.Context) ([]directory.Descriptor, error) {
	descriptors := []directory.Descriptor{}
	err := c.do(ctx, http.MethodGet, "/archives", nil, nil, &descriptors)
	return descriptors, err
}

// Status returns the archival scheduler's status.
func (c *Client) Status(ctx context.Context) (scheduler.Status, error) {
	status := scheduler.Status{}
	err := c.do(ctx, http.MethodGet, "/archives/status", nil, nil, &status)
	return status, err
}

// RunArchival asks the server to run archival now.
func (c *Client) RunArchival(ctx context.Context) (bool, error) {
	resp := routes.RunArchivalResponse{}
	err := c.do(ctx, http.MethodPost, "/archives/run", nil, nil, &resp)
	return resp.Ran, err
}

// OpenSession opens a notification session.
func (c *Client) OpenSession(ctx context.Context, client string, filter session.Filter) (session.Info, error) {
	info := session.Info{}
	req := routes.OpenSessionRequest{Client: client, Filter: filter}
	err := c.do(ctx, http.MethodPost, "/sessions", nil, req, &info)
	return info, err
}

// CloseSession closes a notification session.
func (c *Client) CloseSession(ctx context.Context, id string) (session.Info, error) {
	info := session.Info{}
	err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil, &info)
	return info, err
}

// Poll acknowledges messages up to after and returns the rest.
func (c *Client) Poll(ctx context.Context, id string, after uint64) (session.Batch, error) {
	batch := session.Batch{}
	params := url.Values{"after": {strconv.FormatUint(after, 10)}}
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id)+"/messages", params, nil, &batch)
	return batch, err
}

// Sessions lists open sessions.
func (c *Client) Sessions(ctx context.Context) ([]session.Info, error) {
	infos := []session.Info{}
	err := c.do(ctx, http.MethodGet, "/sessions", nil, nil, &infos)
	return infos, err
}

// Query executes a query language statement.
func (c *Client) Query(ctx context.Context, query string) (*ql.Result, error) {
	result := &ql.Result{}
	if err := c.do(ctx, http.MethodPost, "/query", nil, routes.QueryRequest{Query: query}, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) listing(ctx context.Context, path string, offset, limit int) (news.Page, error) {
	page := news.Page{}
	params := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	err := c.do(ctx, http.MethodGet, path, params, nil, &page)
	return page, err
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body any,
	out any,
) error {
	target := c.serverURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	response := httputil.ErrorResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil || response.Error == "" {
		return APIError{Code: resp.StatusCode, err: "unexpected status: " + resp.Status}
	}
	return APIError{Code: resp.StatusCode, err: response.Error, detail: response.Detail}
}

type transport struct {
	key string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.key))
	}
	return http.DefaultTransport.RoundTrip(req)
}

func newTransport(key string) *transport {
	return &transport{key: key}
}

// NewHTTPClient returns an http client that authenticates with the shared key.
func NewHTTPClient(sharedKey string) *http.Client {
	return &http.Client{
		Transport: newTransport(sharedKey),
	}
}
