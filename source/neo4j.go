package source

import (
	"context"
	"fmt"
	"time"

	"github.com/TFMV/echoview/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig configures a Neo4j source
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

// Neo4j serves graphs stored in a Neo4j database. Graph membership is the
// graphGuid property on nodes; edges are the relationships between member nodes.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

const (
	cypherGraphs = `MATCH (n) WHERE n.graphGuid IS NOT NULL
RETURN DISTINCT n.graphGuid AS guid, coalesce(n.graphName, n.graphGuid) AS name
ORDER BY name, guid`

	cypherNodes = `MATCH (n {graphGuid: $graph})
RETURN coalesce(n.guid, elementId(n)) AS guid, n.name AS name, labels(n) AS labels
ORDER BY guid SKIP $skip LIMIT $max`

	cypherEdges = `MATCH (a {graphGuid: $graph})-[r]->(b {graphGuid: $graph})
RETURN coalesce(r.guid, elementId(r)) AS guid, type(r) AS name,
       coalesce(a.guid, elementId(a)) AS from, coalesce(b.guid, elementId(b)) AS to,
       coalesce(r.cost, 0) AS cost
ORDER BY guid SKIP $skip LIMIT $max`
)

// OpenNeo4j connects to Neo4j and verifies connectivity
func OpenNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j source: uri is required")
	}

	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 10
		c.ConnectionAcquisitionTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return &Neo4j{driver: driver, database: cfg.Database}, nil
}

// Close releases the driver
func (n *Neo4j) Close() error {
	if n.driver == nil {
		return nil
	}
	return n.driver.Close(context.Background())
}

// ListGraphs returns every graphGuid present in the database
func (n *Neo4j) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	records, err := n.query(ctx, cypherGraphs, nil)
	if err != nil {
		return nil, err
	}
	graphs := make([]models.GraphSummary, 0, len(records))
	for _, rec := range records {
		graphs = append(graphs, models.GraphSummary{
			GUID: stringValue(rec["guid"]),
			Name: stringValue(rec["name"]),
		})
	}
	return graphs, nil
}

// ListNodes returns one page of a graph's nodes
func (n *Neo4j) ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error) {
	records, err := n.query(ctx, cypherNodes, pageParams(graphGUID, skip, max))
	if err != nil {
		return nil, err
	}
	nodes := make([]models.NodeRecord, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, nodeFromNeo4j(graphGUID, rec))
	}
	return nodes, nil
}

// ListEdges returns one page of a graph's edges
func (n *Neo4j) ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error) {
	records, err := n.query(ctx, cypherEdges, pageParams(graphGUID, skip, max))
	if err != nil {
		return nil, err
	}
	edges := make([]models.EdgeRecord, 0, len(records))
	for _, rec := range records {
		edges = append(edges, edgeFromNeo4j(graphGUID, rec))
	}
	return edges, nil
}

func (n *Neo4j) query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, n.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("neo4j query failed: %w", err)
	}
	out := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

func pageParams(graphGUID string, skip, max int) map[string]any {
	return map[string]any{
		"graph": graphGUID,
		"skip":  int64(skip),
		"max":   int64(max),
	}
}

func nodeFromNeo4j(graphGUID string, rec map[string]any) models.NodeRecord {
	return models.NodeRecord{
		GUID:      stringValue(rec["guid"]),
		GraphGUID: graphGUID,
		Name:      stringValue(rec["name"]),
		Labels:    stringsValue(rec["labels"]),
	}
}

func edgeFromNeo4j(graphGUID string, rec map[string]any) models.EdgeRecord {
	return models.EdgeRecord{
		GUID:      stringValue(rec["guid"]),
		GraphGUID: graphGUID,
		Name:      stringValue(rec["name"]),
		From:      stringValue(rec["from"]),
		To:        stringValue(rec["to"]),
		Cost:      intValue(rec["cost"]),
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func stringsValue(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, stringValue(item))
	}
	return out
}

func intValue(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
