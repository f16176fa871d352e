package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/loader"
	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/pubsub"
	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/simulation"
	"github.com/TFMV/echoview/source"
	"github.com/gorilla/mux"
)

var topics = map[string]bool{
	pubsub.TopicFrame:     true,
	pubsub.TopicStatus:    true,
	pubsub.TopicSelection: true,
}

type pointerRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wheelRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaY float64 `json:"deltaY"`
}

type pinchRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Factor float64 `json:"factor"`
}

type focusRequest struct {
	ID    string  `json:"id"`
	Scale float64 `json:"scale"`
}

type fitRequest struct {
	Padding float64 `json:"padding"`
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type interactionResponse struct {
	State     string                `json:"state"`
	Hovered   string                `json:"hovered,omitempty"`
	Selection interaction.Selection `json:"selection"`
	Viewport  interaction.Viewport  `json:"viewport"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !topics[topic] {
		http.Error(w, "unknown topic "+topic, http.StatusNotFound)
		return
	}

	sub, err := s.deps.Publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	// Initial comment establishes the stream
	fmt.Fprint(w, ": connected\n\n")

	// Frame subscribers start from the current state rather than waiting for
	// the next change
	if topic == pubsub.TopicFrame {
		if err := s.writeEvent(w, topic, "snapshot", s.deps.Driver.Snapshot()); err != nil {
			return
		}
	}
	flush()

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.DebugContext(r.Context(), "sse client gone", "topic", topic, "error", err)
			return
		}
		flush()
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, topic, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return pubsub.WriteSSE(w, pubsub.Event{Topic: topic, Type: eventType, Data: payload})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Driver.Snapshot())
}

func (s *Server) scene(frame models.Frame) render.Scene {
	c := s.deps.Controller
	a := render.Adapter{
		NodeRadius: s.deps.NodeRadius,
		Highlight:  render.Highlight{Hovered: c.Hovered(), Selected: c.Selected()},
	}
	return a.Primitives(frame, c.Viewport())
}

func (s *Server) handleFrameEncoded(w http.ResponseWriter, r *http.Request) {
	enc, err := render.GetEncoder(mux.Vars(r)["format"], s.deps.Render)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	frame := s.deps.Driver.Snapshot()
	w.Header().Set("Content-Type", enc.ContentType())
	if err := enc.Encode(w, frame, s.scene(frame)); err != nil {
		logging.WarnContext(r.Context(), "failed to encode frame", "format", enc.Name(), "error", err)
	}
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scene(s.deps.Driver.Snapshot()))
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	c := s.deps.Controller

	var req pointerRequest
	if action != "cancel" {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	var err error
	switch action {
	case "down":
		err = c.PointerDown(req.X, req.Y)
	case "move":
		err = c.PointerMove(req.X, req.Y)
	case "up":
		err = c.PointerUp(req.X, req.Y)
	case "cancel":
		c.PointerCancel()
	default:
		http.Error(w, "unknown pointer action "+action, http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.interactionState())
}

func (s *Server) handleWheel(w http.ResponseWriter, r *http.Request) {
	var req wheelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Controller.Wheel(req.X, req.Y, req.DeltaY)
	writeJSON(w, http.StatusOK, s.interactionState())
}

func (s *Server) handlePinch(w http.ResponseWriter, r *http.Request) {
	var req pinchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Controller.Pinch(req.X, req.Y, req.Factor)
	writeJSON(w, http.StatusOK, s.interactionState())
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Selected())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Viewport())
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	req := fitRequest{Padding: 40}
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	s.deps.Controller.Fit(req.Padding)
	writeJSON(w, http.StatusOK, s.deps.Controller.Viewport())
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Scale <= 0 {
		req.Scale = s.deps.Controller.Viewport().Scale
	}
	if err := s.deps.Controller.Focus(req.ID, req.Scale); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Controller.Viewport())
}

func (s *Server) handleResetView(w http.ResponseWriter, r *http.Request) {
	s.deps.Controller.ResetView()
	writeJSON(w, http.StatusOK, s.deps.Controller.Viewport())
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		http.Error(w, "width and height must be positive", http.StatusBadRequest)
		return
	}
	s.deps.Controller.Resize(req.Width, req.Height)
	writeJSON(w, http.StatusOK, s.deps.Controller.Viewport())
}

// handleTooltip places a w×h tooltip for a cursor at (x, y) inside the current
// viewport
func (s *Server) handleTooltip(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var vals [4]float64
	for i, key := range []string{"x", "y", "w", "h"} {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("query parameter %s must be a number", key), http.StatusBadRequest)
			return
		}
		vals[i] = v
	}

	p := s.deps.Tooltip
	view := s.deps.Controller.Viewport()
	p.ViewportWidth, p.ViewportHeight = view.Width, view.Height
	writeJSON(w, http.StatusOK, p.ComputePosition(vals[0], vals[1], vals[2], vals[3]))
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Graphs == nil {
		writeJSON(w, http.StatusOK, []models.GraphSummary{})
		return
	}
	graphs, err := s.deps.Graphs.ListGraphs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graphs)
}

func (s *Server) handleLoadGraph(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loader == nil {
		http.Error(w, "loading is not available", http.StatusNotImplemented)
		return
	}
	guid := mux.Vars(r)["guid"]
	session := s.deps.Loader.Start(s.ctx, guid)
	logging.InfoContext(r.Context(), "graph selected", "graph", guid, "session", session)
	writeJSON(w, http.StatusAccepted, map[string]string{"session": session, "graph": guid})
}

func (s *Server) handleLoaderStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loader == nil {
		writeJSON(w, http.StatusOK, loader.Status{State: loader.Idle})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Loader.Status())
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	l := s.deps.Loader
	if l == nil {
		http.Error(w, "loading is not available", http.StatusNotImplemented)
		return
	}
	if l.Status().GraphGUID == "" {
		writeError(w, r, loader.ErrNoGraph)
		return
	}
	go func() {
		if err := l.Retry(s.ctx); err != nil {
			logging.Warn("retry failed", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, l.Status())
}

func (s *Server) handleCancelLoad(w http.ResponseWriter, r *http.Request) {
	if s.deps.Loader != nil {
		s.deps.Loader.Cancel()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) interactionState() interactionResponse {
	c := s.deps.Controller
	return interactionResponse{
		State:     c.State().String(),
		Hovered:   c.Hovered(),
		Selection: c.Selected(),
		Viewport:  c.Viewport(),
	}
}

// writeError maps domain errors onto status codes
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simulation.ErrUnknownNode), errors.Is(err, source.ErrGraphNotFound):
		status = http.StatusNotFound
	case errors.Is(err, simulation.ErrNotDragging), errors.Is(err, loader.ErrNoGraph):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "request error", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("failed to write response", "error", err)
	}
}
