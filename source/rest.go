package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
)

// RESTConfig configures a REST graph service client
type RESTConfig struct {
	BaseURL string
	Tenant  string
	Token   string
	Timeout time.Duration
}

// REST lists graphs, nodes and edges from a graph service over HTTP:
//
//	GET {base}/v1.0/tenants/{tenant}/graphs
//	GET {base}/v1.0/tenants/{tenant}/graphs/{graph}/nodes?skip=&max=
//	GET {base}/v1.0/tenants/{tenant}/graphs/{graph}/edges?skip=&max=
type REST struct {
	base   *url.URL
	tenant string
	token  string
	client *http.Client
}

// NewREST creates a REST client
func NewREST(cfg RESTConfig) (*REST, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rest source: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest source: invalid base url: %w", err)
	}
	if cfg.Tenant == "" {
		return nil, fmt.Errorf("rest source: tenant is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &REST{
		base:   base,
		tenant: cfg.Tenant,
		token:  cfg.Token,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// ListGraphs returns the graphs of the configured tenant
func (r *REST) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	var graphs []models.GraphSummary
	if err := r.get(ctx, r.path("graphs"), nil, &graphs); err != nil {
		return nil, err
	}
	return graphs, nil
}

// ListNodes returns one page of a graph's nodes
func (r *REST) ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error) {
	var nodes []models.NodeRecord
	if err := r.get(ctx, r.path("graphs", graphGUID, "nodes"), pageQuery(skip, max), &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListEdges returns one page of a graph's edges
func (r *REST) ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error) {
	var edges []models.EdgeRecord
	if err := r.get(ctx, r.path("graphs", graphGUID, "edges"), pageQuery(skip, max), &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

// Close releases idle connections
func (r *REST) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (r *REST) path(parts ...string) string {
	escaped := []string{"v1.0", "tenants", url.PathEscape(r.tenant)}
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func pageQuery(skip, max int) url.Values {
	return url.Values{
		"skip": []string{strconv.Itoa(skip)},
		"max":  []string{strconv.Itoa(max)},
	}
}

func (r *REST) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *r.base
	u.Path = r.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	logging.DebugContext(ctx, "graph service request",
		"path", path,
		"query", u.RawQuery,
		"status", resp.StatusCode,
		"durationMs", time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
