package routes

import (
	"net/http"

	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/util/httputil"
	"github.com/wkalt/newsledger/util/log"
)

// RunArchivalResponse reports whether a manually requested run did any work.
type RunArchivalResponse struct {
	Ran bool `json:"ran"`
}

func newArchivesHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(r.Context(), w, http.StatusOK, l.Archives())
	}
}

func newStatusHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(r.Context(), w, http.StatusOK, l.TaskStatus())
	}
}

func newRunArchivalHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log.Infof(ctx, "Manual archival run requested")
		ran, err := l.RunArchival(ctx)
		if err != nil {
			writeError(ctx, w, "archival run", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, RunArchivalResponse{Ran: ran})
	}
}
