package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/relvacode/iso8601"
	"github.com/wkalt/newsledger/hotbuf"
	"github.com/wkalt/newsledger/ledger"
	"github.com/wkalt/newsledger/news"
	"github.com/wkalt/newsledger/router"
	"github.com/wkalt/newsledger/scheduler"
	"github.com/wkalt/newsledger/session"
	"github.com/wkalt/newsledger/util/httputil"
)

// writeError maps ledger errors onto response codes. Anything unrecognized is
// a 500 with a generic body.
func writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, news.ErrNotFound):
		httputil.NotFound(ctx, w, "%s", err)
	case errors.Is(err, news.ErrInvalidArgument):
		httputil.BadRequest(ctx, w, "%s", err)
	case errors.Is(err, ledger.ErrAlreadyExists), errors.Is(err, session.ErrDuplicateSession):
		httputil.Conflict(ctx, w, "%s", err)
	case errors.Is(err, hotbuf.ErrCapacityExceeded),
		errors.Is(err, router.ErrInconsistentTiers),
		errors.Is(err, scheduler.ErrHalted):
		httputil.ServiceUnavailable(ctx, w, "%s", err)
	default:
		httputil.InternalServerError(ctx, w, "%s failed: %s", op, err)
	}
}

// intParam reads an integer query parameter, returning def if it is absent.
func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + s)
	}
	return v, nil
}

// uint64Param reads an unsigned query parameter, returning def if it is absent.
func uint64Param(r *http.Request, name string, def uint64) (uint64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + s)
	}
	return v, nil
}

// parseTimestamp accepts nanoseconds since the epoch or an ISO 8601 string.
func parseTimestamp(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("missing timestamp")
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return 0, errors.New("invalid timestamp: " + s)
	}
	if t.UnixNano() < 0 {
		return 0, errors.New("timestamp before epoch: " + s)
	}
	return uint64(t.UnixNano()), nil
}

func parseIndex(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("invalid index: " + s)
	}
	return v, nil
}
