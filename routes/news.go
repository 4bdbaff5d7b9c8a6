package routes

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/util/httputil"
	"github.com/wkalt/newsledger/util/log"
)

// CountResponse is the response to a count request.
type CountResponse struct {
	Count uint64 `json:"count"`
}

// AddRecordRequest is the body of a record submission.
type AddRecordRequest struct {
	Provider string   `json:"provider"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	URL      string   `json:"url,omitempty"`
}

func (req AddRecordRequest) validate() error {
	if req.Provider == "" {
		return errors.New("missing provider")
	}
	if req.Category == "" {
		return errors.New("missing category")
	}
	return nil
}

func (req AddRecordRequest) submission() news.Submission {
	return news.Submission{
		Provider: req.Provider,
		Category: req.Category,
		Tags:     req.Tags,
		Title:    req.Title,
		Body:     req.Body,
		URL:      req.URL,
	}
}

func newAddRecordHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := AddRecordRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "add record request",
			"provider", req.Provider,
			"category", req.Category,
			"tags", req.Tags,
		)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		record, err := l.AddRecord(ctx, req.submission())
		if err != nil {
			writeError(ctx, w, "add record", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusCreated, record)
	}
}

func newCountHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		httputil.WriteJSON(ctx, w, http.StatusOK, CountResponse{Count: l.TotalCount()})
	}
}

func newIndexHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s := mux.Vars(r)["index"]
		index, err := parseIndex(s)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		record, err := l.GetByIndex(ctx, index)
		if err != nil {
			writeError(ctx, w, "get by index", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, record)
	}
}

func newHashHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		hash := mux.Vars(r)["hash"]
		record, err := l.GetByHash(ctx, hash)
		if err != nil {
			writeError(ctx, w, "get by hash", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, record)
	}
}

func newLatestHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := intParam(r, "n", ql.DefaultLimit)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		records, err := l.Latest(ctx, n)
		if err != nil {
			writeError(ctx, w, "latest", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, records)
	}
}

func newSinceHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		begin, err := parseTimestamp(r.URL.Query().Get("begin"))
		if err != nil {
			httputil.BadRequest(ctx, w, "invalid begin: %s", err)
			return
		}
		limit, err := intParam(r, "limit", ql.DefaultLimit)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		records, err := l.ByTime(ctx, begin, limit)
		if err != nil {
			writeError(ctx, w, "since", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, records)
	}
}
