package routes

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/session"
	"github.com/wkalt/newsledger/util/httputil"
	"github.com/wkalt/newsledger/util/log"
)

// OpenSessionRequest is the body of a session open request.
type OpenSessionRequest struct {
	Client string         `json:"client"`
	Filter session.Filter `json:"filter"`
}

func (req OpenSessionRequest) validate() error {
	if req.Client == "" {
		return errors.New("missing client")
	}
	return nil
}

func newOpenSessionHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := OpenSessionRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "open session request",
			"client", req.Client,
			"categories", req.Filter.Categories,
			"tags", req.Filter.Tags,
		)
		if err := req.validate(); err != nil {
			httputil.BadRequest(ctx, w, "invalid request: %s", err)
			return
		}
		info, err := l.OpenSession(ctx, req.Client, req.Filter)
		if err != nil {
			writeError(ctx, w, "open session", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusCreated, info)
	}
}

func newListSessionsHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(r.Context(), w, http.StatusOK, l.Sessions())
	}
}

func newCloseSessionHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]
		log.Infow(ctx, "close session request", "session", id)
		info, err := l.CloseSession(ctx, id)
		if err != nil {
			writeError(ctx, w, "close session", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, info)
	}
}

func newPollHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]
		after, err := uint64Param(r, "after", 0)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		batch, err := l.Poll(id, after)
		if err != nil {
			writeError(ctx, w, "poll", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, batch)
	}
}
