package routes

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/ql"
	"github.com/wkalt/newsledger/util/httputil"
	"github.com/wkalt/newsledger/util/log"
)

// NameRequest is the body of a category or tag creation request.
type NameRequest struct {
	Name string `json:"name"`
}

func newCategoriesHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(r.Context(), w, http.StatusOK, l.Categories())
	}
}

func newTagsHandler(l *ledger.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(r.Context(), w, http.StatusOK, l.Tags())
	}
}

func newAddCategoryHandler(l *ledger.Ledger) http.HandlerFunc {
	return newAddNameHandler("category", l.AddCategory)
}

func newAddTagHandler(l *ledger.Ledger) http.HandlerFunc {
	return newAddNameHandler("tag", l.AddTag)
}

func newAddNameHandler(
	kind string,
	add func(ctx context.Context, name string) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := NameRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(ctx, w, "error decoding request: %s", err)
			return
		}
		defer r.Body.Close()
		log.Infow(ctx, "add "+kind+" request", "name", req.Name)
		if err := add(ctx, req.Name); err != nil {
			writeError(ctx, w, "add "+kind, err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusCreated, req)
	}
}

func newCategoryNewsHandler(l *ledger.Ledger) http.HandlerFunc {
	return newListingHandler("category", l.ByCategory)
}

func newTagNewsHandler(l *ledger.Ledger) http.HandlerFunc {
	return newListingHandler("tag", l.ByTag)
}

func newListingHandler(
	kind string,
	list func(ctx context.Context, name string, offset, limit int) (news.Page, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := mux.Vars(r)["name"]
		offset, err := intParam(r, "offset", 0)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		limit, err := intParam(r, "limit", ql.DefaultLimit)
		if err != nil {
			httputil.BadRequest(ctx, w, "%s", err)
			return
		}
		log.Debugw(ctx, kind+" listing request", "name", name, "offset", offset, "limit", limit)
		page, err := list(ctx, name, offset, limit)
		if err != nil {
			writeError(ctx, w, kind+" listing", err)
			return
		}
		httputil.WriteJSON(ctx, w, http.StatusOK, page)
	}
}
