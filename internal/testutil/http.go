package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// GraphServer is a fake Graph API that answers GET requests with one page of
// canned items per path. The version prefix is ignored when matching.
type GraphServer struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string][]map[string]any
	requests []string
}

func NewGraphServer(t *testing.T) *GraphServer {
	t.Helper()
	g := &GraphServer{pages: map[string][]map[string]any{}}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.Close)
	return g
}

// Handle registers the items returned for a path such as "act_1/insights".
func (g *GraphServer) Handle(path string, items ...map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pages[strings.Trim(path, "/")] = items
}

// Requests returns every requested path without its version prefix.
func (g *GraphServer) Requests() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.requests...)
}

func (g *GraphServer) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	if _, rest, found := strings.Cut(path, "/"); found && strings.HasPrefix(path, "v") {
		path = rest
	}

	g.mu.Lock()
	g.requests = append(g.requests, path)
	items, ok := g.pages[path]
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Unknown path components: /" + path,
				"type":    "OAuthException",
				"code":    2500,
			},
		})
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": items})
}
