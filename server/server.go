// Package server exposes the live simulation over HTTP: rendered frames,
// Server-Sent Event streams, pointer input, tooltip placement and graph
// selection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/loader"
	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/pubsub"
	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/simulation"
	"github.com/TFMV/echoview/tooltip"
	"github.com/gorilla/mux"
)

// GraphLister offers the graphs a user can switch between
type GraphLister interface {
	ListGraphs(ctx context.Context) ([]models.GraphSummary, error)
}

// Config for the server
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	ShutdownWait time.Duration
}

// Deps are the collaborators a server drives
type Deps struct {
	Driver     *simulation.Driver
	Controller *interaction.Controller
	Loader     *loader.Loader
	Graphs     GraphLister
	Publisher  *pubsub.Publisher
	Tooltip    tooltip.Positioner
	Render     render.Options
	NodeRadius float64
}

// Server serves one simulation to any number of browsers
type Server struct {
	cfg    Config
	deps   Deps
	router *mux.Router

	// ctx outlives requests; loads started over HTTP run on it
	ctx    context.Context
	cancel context.CancelFunc

	unsubscribe func()
}

// New wires the simulation, loader and controller into the publisher and
// registers the routes
func New(cfg Config, deps Deps) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownWait <= 0 {
		cfg.ShutdownWait = 5 * time.Second
	}
	if deps.Publisher == nil {
		deps.Publisher = pubsub.New(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.bridge()
	s.setupRoutes()
	return s
}

// bridge forwards frames, loader status and selections to SSE topics
func (s *Server) bridge() {
	pub := s.deps.Publisher
	pub.ConfigureTopic(pubsub.TopicStatus, pubsub.TopicConfig{BufferSize: 1})

	s.unsubscribe = s.deps.Driver.Subscribe(simulation.FrameSinkFunc(func(f models.Frame) {
		if pub.Subscribers(pubsub.TopicFrame) == 0 {
			return
		}
		if err := pub.Publish(pubsub.TopicFrame, "tick", f); err != nil && !errors.Is(err, pubsub.ErrClosed) {
			logging.Warn("failed to publish frame", "error", err)
		}
	}))

	if s.deps.Loader != nil {
		s.deps.Loader.OnStatus(loader.StatusSinkFunc(func(st loader.Status) {
			pub.Publish(pubsub.TopicStatus, string(st.State), st)
		}))
	}

	s.deps.Controller.OnSelect(func(sel interaction.Selection) {
		pub.Publish(pubsub.TopicSelection, string(sel.Kind), sel)
	})
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(logging.RequestIDMiddleware)

	// SSE subscription endpoints
	r.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods(http.MethodGet)

	r.HandleFunc("/api/frame", s.handleFrame).Methods(http.MethodGet)
	r.HandleFunc("/api/frame.{format}", s.handleFrameEncoded).Methods(http.MethodGet)
	r.HandleFunc("/api/scene", s.handleScene).Methods(http.MethodGet)

	r.HandleFunc("/api/pointer/{action}", s.handlePointer).Methods(http.MethodPost)
	r.HandleFunc("/api/wheel", s.handleWheel).Methods(http.MethodPost)
	r.HandleFunc("/api/pinch", s.handlePinch).Methods(http.MethodPost)
	r.HandleFunc("/api/selection", s.handleSelection).Methods(http.MethodGet)

	r.HandleFunc("/api/view", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/api/view/fit", s.handleFit).Methods(http.MethodPost)
	r.HandleFunc("/api/view/focus", s.handleFocus).Methods(http.MethodPost)
	r.HandleFunc("/api/view/reset", s.handleResetView).Methods(http.MethodPost)
	r.HandleFunc("/api/view/resize", s.handleResize).Methods(http.MethodPost)

	r.HandleFunc("/api/tooltip", s.handleTooltip).Methods(http.MethodGet)

	r.HandleFunc("/api/graphs", s.handleGraphs).Methods(http.MethodGet)
	r.HandleFunc("/api/graphs/{guid}/load", s.handleLoadGraph).Methods(http.MethodPost)
	r.HandleFunc("/api/loader/status", s.handleLoaderStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/loader/retry", s.handleRetry).Methods(http.MethodPost)
	r.HandleFunc("/api/loader/cancel", s.handleCancelLoad).Methods(http.MethodPost)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: s.cfg.IdleTimeout,
		// No WriteTimeout: SSE streams stay open
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting server", "port", s.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	// Ending subscriptions first lets SSE handlers return
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Close detaches from the driver, cancels server-started loads and ends every
// subscription
func (s *Server) Close() {
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.deps.Publisher.Close()
}
