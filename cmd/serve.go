package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/render"
	"github.com/TFMV/echoview/server"
	"github.com/spf13/cobra"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live layout over HTTP",
		Long:  "Runs the simulation and serves the viewer page, frame encodings, pointer input and event streams.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	cmd.Flags().IntP("port", "p", 8080, "HTTP port")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.driver.Start(ctx); err != nil {
		return err
	}

	renderOpts := render.DefaultOptions()
	renderOpts.Border = false
	srv := server.New(server.Config{Port: cfg.Server.Port}, server.Deps{
		Driver:     rt.driver,
		Controller: rt.controller,
		Loader:     rt.loader,
		Graphs:     rt.backend,
		Tooltip:    rt.tooltip(),
		Render:     renderOpts,
		NodeRadius: cfg.Viewport.NodeRadius,
	})

	if guid := rt.initialGraph(); guid != "" {
		session := rt.loader.Start(ctx, guid)
		logging.Info("loading graph", "graph", guid, "session", session)
	}
	rt.followChanges(ctx)

	brand.Printf("echoview")
	subtle.Printf(" serving on http://localhost:%d (%s source)\n", cfg.Server.Port, cfg.Source.Kind)
	return srv.Run(ctx)
}
