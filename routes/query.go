package routes

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/util/httputil"
	"github.com/wkalt/newsledger/util/log"
)

// QueryRequest is the body of a query language request.
type QueryRequest struct {
	Query string `json:"query"`
}

func (req QueryRequest) validate() error {
	if req.Query == "" {
		return errors.New("missing query")
	}
	return nil
}

func newQueryHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := QueryRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "query request", "query", req.Query)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		result, err := ql.Execute(ctx, l, req.Query)
		if err != nil {
			writeError(ctx, w, "query", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, result)
	}
}
