package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TFMV/echoview/models"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS graphs (
	guid TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nodes (
	guid        TEXT PRIMARY KEY,
	graph_guid  TEXT NOT NULL,
	name        TEXT,
	labels      TEXT,
	tags        TEXT,
	data        TEXT,
	created_utc TEXT
);
CREATE INDEX IF NOT EXISTS idx_nodes_graph ON nodes(graph_guid);
CREATE TABLE IF NOT EXISTS edges (
	guid        TEXT PRIMARY KEY,
	graph_guid  TEXT NOT NULL,
	name        TEXT,
	from_guid   TEXT NOT NULL,
	to_guid     TEXT NOT NULL,
	cost        INTEGER NOT NULL DEFAULT 0,
	labels      TEXT,
	tags        TEXT,
	created_utc TEXT
);
CREATE INDEX IF NOT EXISTS idx_edges_graph ON edges(graph_guid);
`

// SQLite serves graphs stored in a SQLite database file
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) a graph database and applies the schema
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite source: path is required")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database
		conn.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{conn: conn, path: path}, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// InsertGraph stores a graph and all of its records in one transaction
func (s *SQLite) InsertGraph(ctx context.Context, g *models.Graph) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO graphs (guid, name) VALUES (?, ?)`, g.GUID, g.Name); err != nil {
		return fmt.Errorf("failed to insert graph: %w", err)
	}
	if err := insertNodes(ctx, tx, g.GUID, g.Nodes); err != nil {
		return err
	}
	if err := insertEdges(ctx, tx, g.GUID, g.Edges); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

func insertNodes(ctx context.Context, tx *sql.Tx, graphGUID string, nodes []models.NodeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO nodes
		(guid, graph_guid, name, labels, tags, data, created_utc) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		labels, tags, data, err := encodeColumns(n.Labels, n.Tags, n.Data)
		if err != nil {
			return fmt.Errorf("node %s: %w", n.GUID, err)
		}
		if _, err := stmt.ExecContext(ctx, n.GUID, graphGUID, n.Name, labels, tags, data, formatTime(n.CreatedUtc)); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.GUID, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, graphGUID string, edges []models.EdgeRecord) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO edges
		(guid, graph_guid, name, from_guid, to_guid, cost, labels, tags, created_utc) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		labels, tags, _, err := encodeColumns(e.Labels, e.Tags, nil)
		if err != nil {
			return fmt.Errorf("edge %s: %w", e.GUID, err)
		}
		if _, err := stmt.ExecContext(ctx, e.GUID, graphGUID, e.Name, e.From, e.To, e.Cost, labels, tags, formatTime(e.CreatedUtc)); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", e.GUID, err)
		}
	}
	return nil
}

// ListGraphs returns every stored graph ordered by name
func (s *SQLite) ListGraphs(ctx context.Context) ([]models.GraphSummary, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT guid, name FROM graphs ORDER BY name, guid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query graphs: %w", err)
	}
	defer rows.Close()

	graphs := []models.GraphSummary{}
	for rows.Next() {
		var g models.GraphSummary
		if err := rows.Scan(&g.GUID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan graph: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// ListNodes returns one page of a graph's nodes in insertion order
func (s *SQLite) ListNodes(ctx context.Context, graphGUID string, skip, max int) ([]models.NodeRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT guid, graph_guid, name, labels, tags, data, created_utc
		FROM nodes WHERE graph_guid = ? ORDER BY rowid LIMIT ? OFFSET ?`, graphGUID, max, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []models.NodeRecord{}
	for rows.Next() {
		var n models.NodeRecord
		var name, labels, tags, data, created sql.NullString
		if err := rows.Scan(&n.GUID, &n.GraphGUID, &name, &labels, &tags, &data, &created); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Name = name.String
		if err := decodeColumns(labels, tags, data, &n.Labels, &n.Tags, &n.Data); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.GUID, err)
		}
		n.CreatedUtc = parseTime(created)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListEdges returns one page of a graph's edges in insertion order
func (s *SQLite) ListEdges(ctx context.Context, graphGUID string, skip, max int) ([]models.EdgeRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT guid, graph_guid, name, from_guid, to_guid, cost, labels, tags, created_utc
		FROM edges WHERE graph_guid = ? ORDER BY rowid LIMIT ? OFFSET ?`, graphGUID, max, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := []models.EdgeRecord{}
	for rows.Next() {
		var e models.EdgeRecord
		var name, labels, tags, created sql.NullString
		if err := rows.Scan(&e.GUID, &e.GraphGUID, &name, &e.From, &e.To, &e.Cost, &labels, &tags, &created); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Name = name.String
		if err := decodeColumns(labels, tags, sql.NullString{}, &e.Labels, &e.Tags, nil); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.GUID, err)
		}
		e.CreatedUtc = parseTime(created)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// encodeColumns stores labels, tags and data as JSON text; empty values become NULL
func encodeColumns(labels []string, tags map[string]string, data any) (l, t, d sql.NullString, err error) {
	if l, err = jsonColumn(len(labels) > 0, labels); err != nil {
		return
	}
	if t, err = jsonColumn(len(tags) > 0, tags); err != nil {
		return
	}
	d, err = jsonColumn(data != nil, data)
	return
}

func jsonColumn(present bool, v any) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeColumns(labels, tags, data sql.NullString, l *[]string, t *map[string]string, d *any) error {
	if labels.Valid {
		if err := json.Unmarshal([]byte(labels.String), l); err != nil {
			return fmt.Errorf("bad labels column: %w", err)
		}
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), t); err != nil {
			return fmt.Errorf("bad tags column: %w", err)
		}
	}
	if data.Valid && d != nil {
		if err := json.Unmarshal([]byte(data.String), d); err != nil {
			return fmt.Errorf("bad data column: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
