package routes_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wkalt/newsledger/client"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/routes"
	"github.com/wkalt/newsledger/session"
)

const key = "secret"

func setup(t *testing.T, opts ...ledger.Option) (*client.Client, string) {
	t.Helper()
	ctx := context.Background()
	l, _ := ledger.TestLedger(t, opts...)
	ctx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	l.Start(ctx)
	url, done := routes.MakeTestRoutes(t, l, key)
	t.Cleanup(done)
	c := client.New(url, key)
	require.NoError(t, c.AddCategory(ctx, "sports"))
	require.NoError(t, c.AddCategory(ctx, "politics"))
	require.NoError(t, c.AddTag(ctx, "breaking"))
	return c, url
}

func submit(t *testing.T, c *client.Client, n int) []news.Record {
	t.Helper()
	ctx := context.Background()
	records := make([]news.Record, 0, n)
	for i := 0; i < n; i++ {
		r, err := c.AddRecord(ctx, news.Submission{
			Provider: "wire",
			Category: []string{"sports", "politics"}[i%2],
			Tags:     []string{"breaking"},
			Title:    fmt.Sprintf("story %d", i),
		})
		require.NoError(t, err)
		records = append(records, r)
	}
	return records
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t)
	records := submit(t, c, 5)

	t.Run("count", func(t *testing.T) {
		count, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), count)
	})
	t.Run("get by index", func(t *testing.T) {
		record, err := c.Get(ctx, records[2].Index)
		require.NoError(t, err)
		assert.Equal(t, records[2], record)
	})
	t.Run("get missing index", func(t *testing.T) {
		_, err := c.Get(ctx, 100)
		require.ErrorIs(t, err, news.ErrNotFound)
	})
	t.Run("get by hash", func(t *testing.T) {
		record, err := c.GetByHash(ctx, records[3].Hash)
		require.NoError(t, err)
		assert.Equal(t, records[3], record)
	})
	t.Run("get missing hash", func(t *testing.T) {
		_, err := c.GetByHash(ctx, "ffff")
		require.ErrorIs(t, err, news.ErrNotFound)
	})
	t.Run("latest", func(t *testing.T) {
		latest, err := c.Latest(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []news.Record{records[4], records[3]}, latest)
	})
	t.Run("latest zero", func(t *testing.T) {
		_, err := c.Latest(ctx, 0)
		require.ErrorIs(t, err, news.ErrInvalidArgument)
	})
	t.Run("since", func(t *testing.T) {
		since, err := c.Since(ctx, "0", 3)
		require.NoError(t, err)
		assert.Equal(t, records[:3], since)
	})
	t.Run("since iso8601", func(t *testing.T) {
		since, err := c.Since(ctx, "1970-01-01T00:00:00Z", 10)
		require.NoError(t, err)
		assert.Len(t, since, 5)
	})
	t.Run("since garbage", func(t *testing.T) {
		_, err := c.Since(ctx, "yesterday", 10)
		require.ErrorIs(t, err, news.ErrInvalidArgument)
	})
	t.Run("unknown category rejected", func(t *testing.T) {
		_, err := c.AddRecord(ctx, news.Submission{Provider: "wire", Category: "weather"})
		require.ErrorIs(t, err, news.ErrInvalidArgument)
	})
	t.Run("missing provider rejected", func(t *testing.T) {
		_, err := c.AddRecord(ctx, news.Submission{Category: "sports"})
		require.ErrorIs(t, err, news.ErrInvalidArgument)
	})
}

func TestNames(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t)
	categories, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"politics", "sports"}, categories)

	tags, err := c.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"breaking"}, tags)

	require.ErrorIs(t, c.AddCategory(ctx, "sports"), ledger.ErrAlreadyExists)
	require.ErrorIs(t, c.AddTag(ctx, ""), news.ErrInvalidArgument)
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t)
	records := submit(t, c, 6)
	cases := []struct {
		assertion string
		list      func(ctx context.Context, name string, offset, limit int) (news.Page, error)
		name      string
		offset    int
		limit     int
		expected  []news.Record
		total     uint64
		err       error
	}{
		{"first page", c.ByCategory, "sports", 0, 2, []news.Record{records[4], records[2]}, 3, nil},
		{"second page", c.ByCategory, "sports", 2, 2, []news.Record{records[0]}, 3, nil},
		{"offset past end", c.ByCategory, "sports", 10, 2, []news.Record{}, 3, nil},
		{"tag", c.ByTag, "breaking", 0, 1, []news.Record{records[5]}, 6, nil},
		{"unknown category", c.ByCategory, "weather", 0, 1, nil, 0, news.ErrNotFound},
		{"zero limit", c.ByTag, "breaking", 0, 0, nil, 0, news.ErrInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.assertion, func(t *testing.T) {
			page, err := tc.list(ctx, tc.name, tc.offset, tc.limit)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.total, page.TotalElements)
			assert.Equal(t, len(tc.expected), len(page.Content))
			if len(tc.expected) > 0 {
				assert.Equal(t, tc.expected, page.Content)
			}
		})
	}
}

func TestArchival(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t, ledger.WithSchedulerOpts(
		scheduler.WithThreshold(2),
		scheduler.WithRetention(1),
	))
	records := submit(t, c, 5)

	ran, err := c.RunArchival(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	archives, err := c.Archives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, uint64(4), archives[0].Count)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Empty(t, status.LastError)
	assert.Equal(t, uint64(4), status.Archived)

	for _, r := range records {
		found, err := c.Get(ctx, r.Index)
		require.NoError(t, err)
		assert.Equal(t, r, found)
	}
	page, err := c.ByCategory(ctx, "sports", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []news.Record{records[4], records[2], records[0]}, page.Content)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t)
	info, err := c.OpenSession(ctx, "reader", session.Filter{Categories: []string{"sports"}})
	require.NoError(t, err)
	assert.Equal(t, session.Open, info.State)

	_, err = c.OpenSession(ctx, "reader", session.Filter{})
	require.Error(t, err)
	apiErr := client.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Code)

	_, err = c.OpenSession(ctx, "other", session.Filter{Tags: []string{"nope"}})
	require.ErrorIs(t, err, news.ErrInvalidArgument)

	records := submit(t, c, 2)
	require.Eventually(t, func() bool {
		batch, err := c.Poll(ctx, info.ID, 0)
		return err == nil && len(batch.Messages) == 1
	}, testTimeout, testTick)

	batch, err := c.Poll(ctx, info.ID, 0)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 1)
	added, ok := batch.Messages[0].Payload.(session.RecordAdded)
	require.True(t, ok)
	assert.Equal(t, records[0], added.Record)

	batch, err = c.Poll(ctx, info.ID, batch.Next)
	require.NoError(t, err)
	assert.Empty(t, batch.Messages)

	infos, err := c.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "reader", infos[0].Client)

	closed, err := c.CloseSession(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Closed, closed.State)

	_, err = c.Poll(ctx, info.ID, 0)
	require.ErrorIs(t, err, news.ErrNotFound)
	_, err = c.CloseSession(ctx, info.ID)
	require.ErrorIs(t, err, news.ErrNotFound)
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	c, _ := setup(t)
	records := submit(t, c, 3)
	cases := []struct {
		assertion string
		query     string
		check     func(t *testing.T, result *ql.Result)
		err       error
	}{
		{"count", "count", func(t *testing.T, result *ql.Result) {
			require.NotNil(t, result.Count)
			assert.Equal(t, uint64(3), *result.Count)
		}, nil},
		{"get", fmt.Sprintf("get %d", records[1].Index), func(t *testing.T, result *ql.Result) {
			assert.Equal(t, ql.KindRecord, result.Kind)
			assert.Equal(t, records[1], *result.Record)
		}, nil},
		{"category", `category "politics" limit 5`, func(t *testing.T, result *ql.Result) {
			assert.Equal(t, ql.KindPage, result.Kind)
			assert.Equal(t, []news.Record{records[1]}, result.Page.Content)
		}, nil},
		{"syntax error", "frobnicate", nil, news.ErrInvalidArgument},
		{"missing record", "get 1000", nil, news.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.assertion, func(t *testing.T) {
			result, err := c.Query(ctx, tc.query)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			tc.check(t, result)
		})
	}
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()
	_, url := setup(t)
	cases := []struct {
		assertion string
		method    string
		path      string
		body      string
		key       string
		expected  int
	}{
		{"read without key", http.MethodGet, "/news/count", "", "", http.StatusOK},
		{"write without key", http.MethodPost, "/categories", `{"name":"arts"}`, "", http.StatusUnauthorized},
		{"write with wrong key", http.MethodPost, "/categories", `{"name":"arts"}`, "nope", http.StatusUnauthorized},
		{"write with key", http.MethodPost, "/categories", `{"name":"arts"}`, key, http.StatusCreated},
		{"run archival without key", http.MethodPost, "/archives/run", "", "", http.StatusUnauthorized},
		{"malformed body", http.MethodPost, "/news", `{`, key, http.StatusBadRequest},
		{"non-numeric index", http.MethodGet, "/news/abc", "", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/categories/sports/news?limit=x", "", "", http.StatusBadRequest},
		{"metrics", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"preflight", http.MethodOptions, "/news", "", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.assertion, func(t *testing.T) {
			req, err := http.NewRequestWithContext(ctx, tc.method, url+tc.path, bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			if tc.key != "" {
				req.Header.Set("Authorization", "Bearer "+tc.key)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			_, err = io.Copy(io.Discard, resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, resp.StatusCode)
		})
	}
}
