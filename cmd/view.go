package cmd

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/tui"
	"github.com/spf13/cobra"
)

func viewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Explore the live layout in the terminal",
		Long:  "Runs the simulation in a full-screen terminal viewer. Drag nodes with the mouse, scroll to zoom, n/p to switch graphs.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The screen belongs to the viewer
			if opts.cfg.Log.File == "" {
				logging.SetOutput(io.Discard)
				defer logging.SetOutput(os.Stderr)
			}

			rt, err := newRuntime(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.driver.Start(ctx); err != nil {
				return err
			}
			if guid := rt.initialGraph(); guid != "" {
				rt.loader.Start(ctx, guid)
			}
			rt.followChanges(ctx)

			return tui.Run(ctx, tui.Deps{
				Driver:     rt.driver,
				Controller: rt.controller,
				Loader:     rt.loader,
				Graphs:     rt.graphs,
				NodeRadius: opts.cfg.Viewport.NodeRadius,
			})
		},
	}
}
