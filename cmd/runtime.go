package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/TFMV/echoview/config"
	"github.com/TFMV/echoview/interaction"
	"github.com/TFMV/echoview/loader"
	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/models"
	"github.com/TFMV/echoview/physics"
	"github.com/TFMV/echoview/simulation"
	"github.com/TFMV/echoview/source"
	"github.com/TFMV/echoview/tooltip"
)

// placementSeed keeps layouts of the same graph reproducible across runs
const placementSeed = 1

// runtime is the pipeline shared by the serve, view and render commands:
// source → loader → simulation ← interaction
type runtime struct {
	cfg        *config.Config
	backend    source.Backend
	driver     *simulation.Driver
	controller *interaction.Controller
	loader     *loader.Loader
	graphs     []models.GraphSummary
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	backend, err := source.Open(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Source.Kind, err)
	}

	params := cfg.Physics
	driver := simulation.New(
		physics.NewKernel(params),
		physics.NewPlacer(params, placementSeed),
		simulation.WithFPS(cfg.FPS),
	)

	opts := interaction.DefaultOptions()
	opts.ClickThreshold = cfg.Viewport.ClickThreshold
	opts.NodeRadius = cfg.Viewport.NodeRadius
	view := interaction.NewViewport(params.Width, params.Height, cfg.Viewport.MinScale, cfg.Viewport.MaxScale)

	rt := &runtime{
		cfg:        cfg,
		backend:    backend,
		driver:     driver,
		controller: interaction.NewController(driver, view, opts),
		loader: loader.New(backend, driver, loader.Options{
			BatchSize:         cfg.Loader.BatchSize,
			MaxNodes:          cfg.Loader.MaxNodes,
			MaxEdges:          cfg.Loader.MaxEdges,
			RequestsPerSecond: cfg.Loader.RequestsPerSecond,
			Burst:             cfg.Loader.Burst,
		}),
	}

	// An unreachable service still lets the surfaces start; the graph can be
	// picked once it answers
	graphs, err := backend.ListGraphs(ctx)
	if err != nil {
		logging.Warn("failed to list graphs", "source", cfg.Source.Kind, "error", err)
	}
	rt.graphs = graphs
	return rt, nil
}

// initialGraph is the configured graph, or the first one the source lists
func (rt *runtime) initialGraph() string {
	if rt.cfg.Graph != "" {
		return rt.cfg.Graph
	}
	if len(rt.graphs) > 0 {
		return rt.graphs[0].GUID
	}
	return ""
}

func (rt *runtime) tooltip() tooltip.Positioner {
	v := rt.controller.Viewport()
	p := tooltip.New(v.Width, v.Height)
	if off := rt.cfg.Viewport.TooltipOffset; off > 0 {
		p.OffsetX, p.OffsetY = off, off
	}
	if m := rt.cfg.Viewport.TooltipMargin; m > 0 {
		p.Margin = m
	}
	return p
}

// followChanges reloads the graph whenever a watched file source changes. It
// returns immediately for other sources.
func (rt *runtime) followChanges(ctx context.Context) {
	f, ok := rt.backend.(*source.File)
	if !ok || !rt.cfg.Source.Watch {
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case guid := <-f.Changes():
				if rt.loader.Status().GraphGUID != guid {
					rt.loader.Start(ctx, guid)
					continue
				}
				if _, err := rt.loader.Refresh(ctx); err != nil && !errors.Is(err, loader.ErrNoGraph) {
					logging.Warn("reload after file change failed", "error", err)
				}
			}
		}
	}()
}

func (rt *runtime) Close() error {
	rt.loader.Cancel()
	rt.driver.Stop()
	return rt.backend.Close()
}
