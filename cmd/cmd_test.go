package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestSeedJSONThenRenderASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.json")

	_, stderr, err := execute(t, "seed", path, "--nodes", "10")
	require.NoError(t, err)
	assert.Contains(t, stderr, "10 nodes, 10 edges")

	f, err := source.OpenFile(path)
	require.NoError(t, err)
	g := f.Graph()
	assert.Equal(t, "demo", g.Name)
	assert.Len(t, g.Nodes, 10)
	require.NoError(t, f.Close())

	stdout, _, err := execute(t, "render",
		"--source", "file", "--path", path,
		"--format", "ascii", "--max-ticks", "50", "--rps", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "echoview  nodes 10  edges 10")
	assert.Contains(t, stdout, "O")
}

func TestSeedYAMLThenRenderSVGFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.yaml")
	out := filepath.Join(dir, "demo.svg")

	_, _, err := execute(t, "seed", path, "--nodes", "6", "--name", "small")
	require.NoError(t, err)

	_, stderr, err := execute(t, "render",
		"--source", "file", "--path", path,
		"--max-ticks", "20", "--rps", "0", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "6 nodes")
	assert.Contains(t, stderr, "svg")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	svg := string(data)
	assert.Contains(t, svg, "<svg width=\"800\" height=\"600\"")
	assert.Equal(t, 6, strings.Count(svg, "<circle"))
}

func TestSeedSQLiteThenRenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphs.db")

	_, _, err := execute(t, "seed", path, "--nodes", "12")
	require.NoError(t, err)

	stdout, _, err := execute(t, "render",
		"--source", "sqlite", "--path", path,
		"--format", "json", "--max-ticks", "10", "--rps", "0", "--batch-size", "5")
	require.NoError(t, err)

	var export render.Export
	require.NoError(t, json.Unmarshal([]byte(stdout), &export))
	assert.Len(t, export.Frame.Nodes, 12)
	assert.Len(t, export.Scene.Circles, 12)
	assert.Equal(t, 800.0, export.Scene.Width)
}

func TestRenderDemoAsDOT(t *testing.T) {
	stdout, _, err := execute(t, "render", "--source", "demo", "--format", "dot", "--max-ticks", "5", "--rps", "0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "digraph G {"))
	assert.Contains(t, stdout, "node-00")
}

func TestRenderRespectsNodeCap(t *testing.T) {
	stdout, _, err := execute(t, "render", "--source", "demo", "--format", "json",
		"--max-nodes", "7", "--max-ticks", "5", "--rps", "0")
	require.NoError(t, err)

	var export render.Export
	require.NoError(t, json.Unmarshal([]byte(stdout), &export))
	assert.Len(t, export.Frame.Nodes, 7)
}

func TestRenderUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "render", "--source", "demo", "--format", "png")
	require.Error(t, err)
	assert.ErrorIs(t, err, render.ErrUnsupportedFormat)
}

func TestSeedUnsupportedExtension(t *testing.T) {
	_, _, err := execute(t, "seed", filepath.Join(t.TempDir(), "demo.xml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrUnsupportedFormat)
}

func TestSeedNeedsPath(t *testing.T) {
	_, _, err := execute(t, "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path")
}

func TestInvalidConfigurationRejected(t *testing.T) {
	_, _, err := execute(t, "render", "--source", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source kind")

	_, _, err = execute(t, "render", "--source", "demo", "--batch-size", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestConfigFileIsRead(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "echoview.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[source]
kind = "demo"

[loader]
max_nodes = 4
requests_per_second = 0.0
`), 0o644))

	stdout, _, err := execute(t, "render", "--config", cfgPath, "--format", "json", "--max-ticks", "5")
	require.NoError(t, err)

	var export render.Export
	require.NoError(t, json.Unmarshal([]byte(stdout), &export))
	assert.Len(t, export.Frame.Nodes, 4)
}

func TestMissingConfigFileFails(t *testing.T) {
	_, _, err := execute(t, "render", "--config", filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestFormatFromOutput(t *testing.T) {
	cases := map[string]string{
		"":          "svg",
		"graph.svg": "svg",
		"graph.txt": "ascii",
		"g.JSON":    "json",
		"g.gv":      "dot",
		"g.dot":     "dot",
	}
	for path, want := range cases {
		assert.Equal(t, want, formatFromOutput(path), path)
	}
}
