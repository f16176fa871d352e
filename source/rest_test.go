package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/TFMV/echoview/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphService(t *testing.T, g *models.Graph) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	prefix := "/v1.0/tenants/tenant-1"

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer secret" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	paging := func(r *http.Request) (int, int) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		max, _ := strconv.Atoi(r.URL.Query().Get("max"))
		return skip, max
	}

	mux.HandleFunc(prefix+"/graphs", auth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.GraphSummary{{GUID: g.GUID, Name: g.Name}})
	}))
	mux.HandleFunc(prefix+"/graphs/"+g.GUID+"/nodes", auth(func(w http.ResponseWriter, r *http.Request) {
		skip, max := paging(r)
		json.NewEncoder(w).Encode(page(g.Nodes, skip, max))
	}))
	mux.HandleFunc(prefix+"/graphs/"+g.GUID+"/edges", auth(func(w http.ResponseWriter, r *http.Request) {
		skip, max := paging(r)
		json.NewEncoder(w).Encode(page(g.Edges, skip, max))
	}))
	mux.HandleFunc(prefix+"/graphs/broken/nodes", auth(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRESTListsPages(t *testing.T) {
	g := smallGraph("g1", 5)
	srv := newGraphService(t, g)

	r, err := NewREST(RESTConfig{BaseURL: srv.URL + "/", Tenant: "tenant-1", Token: "secret"})
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	graphs, err := r.ListGraphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.GraphSummary{{GUID: "g1", Name: "g1"}}, graphs)

	nodes, err := r.ListNodes(ctx, "g1", 3, 10)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "g1-nd", nodes[0].GUID)

	edges, err := r.ListEdges(ctx, "g1", 0, 2)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "g1-na", edges[0].From)
	assert.Equal(t, "g1-nb", edges[0].To)
}

func TestRESTErrors(t *testing.T) {
	srv := newGraphService(t, smallGraph("g1", 2))
	ctx := context.Background()

	r, err := NewREST(RESTConfig{BaseURL: srv.URL, Tenant: "tenant-1", Token: "secret"})
	require.NoError(t, err)

	_, err = r.ListNodes(ctx, "unknown", 0, 10)
	assert.ErrorIs(t, err, ErrGraphNotFound)

	_, err = r.ListNodes(ctx, "broken", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "database unavailable")

	noToken, err := NewREST(RESTConfig{BaseURL: srv.URL, Tenant: "tenant-1"})
	require.NoError(t, err)
	_, err = noToken.ListNodes(ctx, "g1", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRESTConfigValidation(t *testing.T) {
	_, err := NewREST(RESTConfig{Tenant: "t"})
	assert.Error(t, err)
	_, err = NewREST(RESTConfig{BaseURL: "http://localhost"})
	assert.Error(t, err)
}

func TestRESTHonoursContext(t *testing.T) {
	srv := newGraphService(t, smallGraph("g1", 2))
	r, err := NewREST(RESTConfig{BaseURL: srv.URL, Tenant: "tenant-1", Token: "secret"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ListNodes(ctx, "g1", 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}
