package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/util/mw"
)

/*
Package routes exposes the ledger over HTTP. Reads are open; anything that
changes ledger state sits behind the shared-key check.
*/

////////////////////////////////////////////////////////////////////////////////

// MakeRoutes constructs the ledger's HTTP handler. CORS wraps the router so
// that preflight requests are answered before route matching.
func MakeRoutes(l *ledger.Ledger, allowedOrigins []string, sharedKey string) http.Handler {
	r := mux.NewRouter()
	r.Use(mw.WithMetrics)
	r.Use(mw.WithRequestID)

	auth := mw.WithSharedKeyAuth(sharedKey)

	r.HandleFunc("/news/count", newCountHandler(l)).Methods("GET")
	r.HandleFunc("/news/latest", newLatestHandler(l)).Methods("GET")
	r.HandleFunc("/news/since", newSinceHandler(l)).Methods("GET")
	r.HandleFunc("/news/hash/{hash}", newHashHandler(l)).Methods("GET")
	r.HandleFunc("/news/{index:[0-9]+}", newIndexHandler(l)).Methods("GET")
	r.Handle("/news", auth(newAddRecordHandler(l))).Methods("POST")

	r.HandleFunc("/categories", newCategoriesHandler(l)).Methods("GET")
	r.Handle("/categories", auth(newAddCategoryHandler(l))).Methods("POST")
	r.HandleFunc("/categories/{name}/news", newCategoryNewsHandler(l)).Methods("GET")
	r.HandleFunc("/tags", newTagsHandler(l)).Methods("GET")
	r.Handle("/tags", auth(newAddTagHandler(l))).Methods("POST")
	r.HandleFunc("/tags/{name}/news", newTagNewsHandler(l)).Methods("GET")

	r.HandleFunc("/archives", newArchivesHandler(l)).Methods("GET")
	r.HandleFunc("/archives/status", newStatusHandler(l)).Methods("GET")
	r.Handle("/archives/run", auth(newRunArchivalHandler(l))).Methods("POST")

	r.HandleFunc("/sessions", newOpenSessionHandler(l)).Methods("POST")
	r.HandleFunc("/sessions", newListSessionsHandler(l)).Methods("GET")
	r.HandleFunc("/sessions/{id}", newCloseSessionHandler(l)).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/messages", newPollHandler(l)).Methods("GET")

	r.HandleFunc("/query", newQueryHandler(l)).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return mw.WithCORSAllowedOrigins(allowedOrigins)(r)
}
