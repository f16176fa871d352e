package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeShortJSON(t *testing.T) {
	data := []byte(`{
		"nodes": [
			{"id": "1", "label": "Dreams"},
			{"id": "2", "label": "Illusions"},
			{"id": "3", "label": "Memories"}
		],
		"edges": [
			{"source": "1", "target": "2", "weight": 1.2},
			{"source": "2", "target": "3", "weight": 2.6}
		]
	}`)

	g, err := Decode(data, FormatJSON, "dreams")
	require.NoError(t, err)

	assert.Equal(t, "dreams", g.GUID)
	assert.Equal(t, "dreams", g.Name)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "1", g.Nodes[0].GUID)
	assert.Equal(t, "Dreams", g.Nodes[0].Name)
	assert.Equal(t, "dreams", g.Nodes[0].GraphGUID)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, "1", g.Edges[0].From)
	assert.Equal(t, "2", g.Edges[0].To)
	assert.Equal(t, 1, g.Edges[0].Cost)
	assert.Equal(t, 3, g.Edges[1].Cost)
	assert.Equal(t, "1->2#0", g.Edges[0].GUID)
}

func TestDecodeRecordJSON(t *testing.T) {
	data := []byte(`{
		"GUID": "g-1",
		"Name": "Records",
		"Nodes": [
			{"GUID": "a", "Name": "Alpha", "Labels": ["x"], "Tags": {"k": "v"}},
			{"GUID": "b", "Name": "Beta"}
		],
		"Edges": [
			{"GUID": "e-1", "From": "a", "To": "b", "Cost": 4, "Name": "links"}
		]
	}`)

	g, err := Decode(data, FormatJSON, "ignored")
	require.NoError(t, err)
	assert.Equal(t, "g-1", g.GUID)
	assert.Equal(t, "Records", g.Name)
	assert.Equal(t, []string{"x"}, g.Nodes[0].Labels)
	assert.Equal(t, map[string]string{"k": "v"}, g.Nodes[0].Tags)
	assert.Equal(t, "e-1", g.Edges[0].GUID)
	assert.Equal(t, 4, g.Edges[0].Cost)
	assert.Equal(t, "links", g.Edges[0].Name)
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`
name: yaml graph
nodes:
  - guid: a
    name: Alpha
    labels: [svc]
  - id: b
    label: Beta
edges:
  - from: a
    to: b
    cost: 2
  - source: b
    target: a
`)

	g, err := Decode(data, FormatYAML, "file")
	require.NoError(t, err)
	assert.Equal(t, "file", g.GUID)
	assert.Equal(t, "yaml graph", g.Name)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "Beta", g.Nodes[1].Name)
	assert.Equal(t, []string{"svc"}, g.Nodes[0].Labels)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, 2, g.Edges[0].Cost)
	assert.Equal(t, "b", g.Edges[1].From)
}

func TestDecodeCSV(t *testing.T) {
	data := []byte("From,To,Weight,Label\nweb,api,2,calls\napi,db,1.6,queries\nweb,db,oops,\n")

	g, err := Decode(data, FormatCSV, "services")
	require.NoError(t, err)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"web", "api", "db"}, []string{g.Nodes[0].GUID, g.Nodes[1].GUID, g.Nodes[2].GUID})
	require.Len(t, g.Edges, 3)
	assert.Equal(t, "calls", g.Edges[0].Name)
	assert.Equal(t, 2, g.Edges[0].Cost)
	assert.Equal(t, 2, g.Edges[1].Cost)
	assert.Equal(t, 1, g.Edges[2].Cost, "unparseable weights fall back to 1")
}

func TestDecodeCSVRequiresColumns(t *testing.T) {
	_, err := Decode([]byte("a,b\n1,2\n"), FormatCSV, "x")
	assert.ErrorContains(t, err, "source and target")
}

func TestDecodeLog(t *testing.T) {
	data := []byte("web -> api\n\nnot a relationship\napi linked to db\n")

	g := decodeLog(data, "log")
	assert.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 3)
	assert.Equal(t, "web", g.Edges[0].From)
	assert.Equal(t, "api", g.Edges[1].From)
	assert.Equal(t, "db", g.Edges[2].From, "bidirectional phrasing adds the reverse edge")
}

func TestDecodeRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
		err    string
	}{
		{"malformed json", `{"nodes": [`, FormatJSON, "parsing JSON"},
		{"node without id", `{"nodes": [{"label": "x"}]}`, FormatJSON, "no id"},
		{"duplicate node", `{"nodes": [{"id": "a"}, {"id": "a"}]}`, FormatJSON, "duplicate"},
		{"edge without endpoint", `{"nodes": [{"id": "a"}], "edges": [{"source": "a"}]}`, FormatJSON, "missing an endpoint"},
		{"unknown format", `x`, "xml", "unsupported format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), tt.format, "g")
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]string{
		"a.json":     FormatJSON,
		"dir/b.YAML": FormatYAML,
		"c.yml":      FormatYAML,
		"d.csv":      FormatCSV,
		"e.log":      FormatLog,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("graph.xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
