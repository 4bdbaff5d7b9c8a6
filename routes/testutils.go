package routes

import (
	"net/http/httptest"
	"testing"

	"github.com/wkalt/newsledger/ledger"
)

// MakeTestRoutes serves the ledger's routes on a test server, returning its
// URL and a function to stop it.
func MakeTestRoutes(t *testing.T, l *ledger.Ledger, sharedKey string) (string, func()) {
	t.Helper()
	handler := MakeRoutes(l, nil, sharedKey)
	srv := httptest.NewServer(handler)
	return srv.URL, srv.Close
}
