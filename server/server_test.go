package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/loader"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/physics"
	"github.com/TFMV/echoview/pubsub"
	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/simulation"
	"github.com/TFMV/echoview/source"
	"github.com/TFMV/echoview/tooltip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *Server
	driver *simulation.Driver
	loader *loader.Loader
	demo   *models.Graph
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	params := physics.DefaultParams()
	d := simulation.New(physics.NewKernel(params), physics.NewPlacer(params, 1))
	d.MergeNodes([]models.Node{
		{ID: "a", Label: "alpha", X: 100, Y: 100},
		{ID: "b", Label: "beta", X: 400, Y: 300},
	})
	d.MergeEdges([]models.Edge{{ID: "ab", Source: "a", Target: "b"}})

	demo := source.DemoGraph(12)
	mem := source.NewMemory(demo)
	l := loader.New(mem, d, loader.Options{BatchSize: 5})
	c := interaction.NewController(d, interaction.NewViewport(800, 600, 0.2, 5), interaction.DefaultOptions())

	s := New(Config{}, Deps{
		Driver:     d,
		Controller: c,
		Loader:     l,
		Graphs:     mem,
		Publisher:  pubsub.New(0),
		Tooltip:    tooltip.New(800, 600),
		Render:     render.DefaultOptions(),
		NodeRadius: 8,
	})
	t.Cleanup(s.Close)
	return &fixture{server: s, driver: d, loader: l, demo: demo}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestFrameJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/frame", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	frame := decode[models.Frame](t, rec)
	require.Len(t, frame.Nodes, 2)
	require.Len(t, frame.Edges, 1)
	assert.Equal(t, 400.0, frame.Edges[0].TargetX)
}

func TestFrameEncoded(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/frame.svg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `<circle data-id="a" cx="100.00" cy="100.00"`)

	rec = f.do(t, http.MethodGet, "/api/frame.ascii", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echoview  nodes 2  edges 1")

	rec = f.do(t, http.MethodGet, "/api/frame.png", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSceneFollowsViewport(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/view/focus", `{"id": "a", "scale": 2}`).Code)

	scene := decode[render.Scene](t, f.do(t, http.MethodGet, "/api/scene", ""))
	require.Len(t, scene.Circles, 2)
	assert.Equal(t, 400.0, scene.Circles[0].X, "focused node sits in the middle")
	assert.Equal(t, 300.0, scene.Circles[0].Y)
	assert.Equal(t, 16.0, scene.Circles[0].R)
}

func TestPointerDrag(t *testing.T) {
	f := newFixture(t)

	st := decode[interactionResponse](t, f.do(t, http.MethodPost, "/api/pointer/down", `{"x": 100, "y": 100}`))
	assert.Equal(t, "dragging", st.State)

	f.do(t, http.MethodPost, "/api/pointer/move", `{"x": 150, "y": 160}`)
	node, ok := f.driver.Snapshot().FindNode("a")
	require.True(t, ok)
	assert.Equal(t, 150.0, node.X)
	assert.Equal(t, 160.0, node.Y)
	assert.True(t, node.IsDragging)

	st = decode[interactionResponse](t, f.do(t, http.MethodPost, "/api/pointer/up", `{"x": 150, "y": 160}`))
	assert.Equal(t, "idle", st.State)
	node, _ = f.driver.Snapshot().FindNode("a")
	assert.False(t, node.IsDragging)
}

func TestPointerClickSelects(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/pointer/down", `{"x": 400, "y": 300}`)
	st := decode[interactionResponse](t, f.do(t, http.MethodPost, "/api/pointer/up", `{"x": 400, "y": 300}`))
	assert.Equal(t, interaction.Selection{Kind: interaction.SelectNode, ID: "b"}, st.Selection)

	sel := decode[interaction.Selection](t, f.do(t, http.MethodGet, "/api/selection", ""))
	assert.Equal(t, "b", sel.ID)

	svg := f.do(t, http.MethodGet, "/api/frame.svg", "").Body.String()
	assert.Contains(t, svg, `<circle data-id="b" cx="400.00" cy="300.00" r="8.00" fill="#FBBC05"`)
}

func TestPointerErrors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/pointer/hover", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/pointer/down", `{"x":`).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/pointer/cancel", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/api/pointer/down", "").Code)
}

func TestWheelZoomsAtCursor(t *testing.T) {
	f := newFixture(t)

	st := decode[interactionResponse](t, f.do(t, http.MethodPost, "/api/wheel", `{"x": 400, "y": 300, "deltaY": -120}`))
	assert.InDelta(t, 1.1, st.Viewport.Scale, 1e-9)
	wx, wy := st.Viewport.ScreenToWorld(400, 300)
	assert.InDelta(t, 400, wx, 1e-9)
	assert.InDelta(t, 300, wy, 1e-9)

	view := decode[interaction.Viewport](t, f.do(t, http.MethodPost, "/api/view/reset", ""))
	assert.Equal(t, 1.0, view.Scale)
}

func TestViewEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/view/focus", `{"id": "zz"}`).Code)

	view := decode[interaction.Viewport](t, f.do(t, http.MethodPost, "/api/view/resize", `{"width": 1000, "height": 500}`))
	assert.Equal(t, 1000.0, view.Width)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/view/resize", `{"width": 0, "height": 500}`).Code)

	rec := f.do(t, http.MethodPost, "/api/view/fit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[interaction.Viewport](t, rec)
	assert.Greater(t, view.Scale, 1.0)
}

func TestTooltipPlacement(t *testing.T) {
	f := newFixture(t)

	pos := decode[tooltip.Point](t, f.do(t, http.MethodGet, "/api/tooltip?x=100&y=100&w=80&h=20", ""))
	assert.Equal(t, tooltip.Point{X: 112, Y: 112}, pos)

	pos = decode[tooltip.Point](t, f.do(t, http.MethodGet, "/api/tooltip?x=790&y=590&w=100&h=40", ""))
	assert.Equal(t, tooltip.Point{X: 678, Y: 538}, pos, "flips away from the bottom-right corner")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/tooltip?x=1&y=2&w=3", "").Code)
}

func TestGraphSelectionLoads(t *testing.T) {
	f := newFixture(t)

	graphs := decode[[]models.GraphSummary](t, f.do(t, http.MethodGet, "/api/graphs", ""))
	require.Len(t, graphs, 1)
	assert.Equal(t, f.demo.GUID, graphs[0].GUID)

	rec := f.do(t, http.MethodPost, "/api/graphs/"+f.demo.GUID+"/load", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[map[string]string](t, rec)
	assert.NotEmpty(t, accepted["session"])

	require.Eventually(t, func() bool {
		return f.loader.Status().State == loader.Loaded
	}, 5*time.Second, 10*time.Millisecond)

	nodes, edges := f.driver.Counts()
	assert.Equal(t, 12, nodes, "switching graphs drops the previous nodes")
	assert.Equal(t, len(f.demo.Edges), edges)

	st := decode[loader.Status](t, f.do(t, http.MethodGet, "/api/loader/status", ""))
	assert.Equal(t, loader.Loaded, st.State)
	assert.Equal(t, 12, st.NodesLoaded)
	assert.Equal(t, accepted["session"], st.Session)
}

func TestRetryNeedsAGraph(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/loader/retry", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/loader/cancel", "").Code)
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/subscribe/frame")
}

// sseClient reads events from a live subscription
type sseClient struct {
	t      *testing.T
	reader *bufio.Reader
}

func subscribe(t *testing.T, ts *httptest.Server, topic string) *sseClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/subscribe/"+topic, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	c := &sseClient{t: t, reader: bufio.NewReader(resp.Body)}
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	return c
}

func (c *sseClient) next() pubsub.Event {
	c.t.Helper()
	type result struct {
		ev  pubsub.Event
		err error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := c.reader.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var ev pubsub.Event
				ch <- result{ev: ev, err: json.Unmarshal([]byte(data), &ev)}
				return
			}
		}
	}()

	select {
	case r := <-ch:
		require.NoError(c.t, r.err)
		return r.ev
	case <-time.After(5 * time.Second):
		c.t.Fatal("timeout waiting for event")
		return pubsub.Event{}
	}
}

func liveServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(f.server.Handler())
	// Cleanups run last-in first-out: end subscriptions before the listener
	t.Cleanup(ts.Close)
	t.Cleanup(f.server.Close)
	return ts
}

func TestSubscribeFrameStartsWithSnapshot(t *testing.T) {
	f := newFixture(t)
	ts := liveServer(t, f)

	client := subscribe(t, ts, pubsub.TopicFrame)
	ev := client.next()
	assert.Equal(t, pubsub.TopicFrame, ev.Topic)
	assert.Equal(t, "snapshot", ev.Type)

	var frame models.Frame
	require.NoError(t, json.Unmarshal(ev.Data, &frame))
	assert.Len(t, frame.Nodes, 2)

	f.driver.Tick()
	ev = client.next()
	assert.Equal(t, "tick", ev.Type)
	assert.Equal(t, 1, ev.Version)
}

func TestSubscribeSelection(t *testing.T) {
	f := newFixture(t)
	ts := liveServer(t, f)

	client := subscribe(t, ts, pubsub.TopicSelection)

	f.do(t, http.MethodPost, "/api/pointer/down", `{"x": 250, "y": 200}`)
	f.do(t, http.MethodPost, "/api/pointer/up", `{"x": 250, "y": 200}`)

	ev := client.next()
	assert.Equal(t, "edge", ev.Type)
	var sel interaction.Selection
	require.NoError(t, json.Unmarshal(ev.Data, &sel))
	assert.Equal(t, interaction.Selection{Kind: interaction.SelectEdge, ID: "ab"}, sel)
}

func TestSubscribeStatusReplaysLatest(t *testing.T) {
	f := newFixture(t)
	ts := liveServer(t, f)

	require.NoError(t, f.loader.Load(context.Background(), f.demo.GUID))

	client := subscribe(t, ts, pubsub.TopicStatus)
	ev := client.next()
	assert.Equal(t, string(loader.Loaded), ev.Type)

	var st loader.Status
	require.NoError(t, json.Unmarshal(ev.Data, &st))
	assert.Equal(t, 12, st.NodesLoaded)
}

func TestSubscribeUnknownTopic(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/subscribe/gossip", "").Code)
}
