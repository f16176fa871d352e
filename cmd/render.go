package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/echoview/logging"
	"github.com/TFMV/echoview/render"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	format   string
	output   string
	maxTicks int
	fit      bool
	labels   bool
}

func renderCmd(opts *rootOptions) *cobra.Command {
	ro := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Lay out a graph offline and write it as svg, ascii, json or dot",
		Example: "  echoview render --source file --path graph.json -o graph.svg\n" +
			"  echoview render --source demo --format ascii",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), opts, ro, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&ro.format, "format", "f", "", "output format: "+strings.Join(render.Formats(), ", ")+" (default from the output extension, else svg)")
	f.StringVarP(&ro.output, "output", "o", "", "output file (default stdout)")
	f.IntVar(&ro.maxTicks, "max-ticks", 1000, "maximum simulation ticks before writing")
	f.BoolVar(&ro.fit, "fit", true, "scale the view to the laid out graph")
	f.BoolVar(&ro.labels, "labels", true, "draw node labels")
	return cmd
}

// formatFromOutput guesses the encoder from an output file name
func formatFromOutput(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return "ascii"
	case ".json":
		return "json"
	case ".dot", ".gv":
		return "dot"
	default:
		return "svg"
	}
}

func runRender(ctx context.Context, opts *rootOptions, ro *renderOptions, stdout, stderr io.Writer) error {
	format := ro.format
	if format == "" {
		format = formatFromOutput(ro.output)
	}
	renderOpts := render.DefaultOptions()
	renderOpts.ShowLabels = ro.labels
	enc, err := render.GetEncoder(format, renderOpts)
	if err != nil {
		return err
	}

	rt, err := newRuntime(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	guid := rt.initialGraph()
	if guid == "" {
		return errors.New("no graph to render: the source lists none and --graph is not set")
	}
	if err := rt.loader.Load(ctx, guid); err != nil {
		return fmt.Errorf("load graph %s: %w", guid, err)
	}
	status := rt.loader.Status()
	if status.Truncated {
		logging.Warn("graph truncated at the configured caps", "nodes", status.NodesLoaded, "edges", status.EdgesLoaded)
	}

	ticks, err := rt.driver.Settle(ctx, ro.maxTicks)
	if err != nil {
		return err
	}
	frame := rt.driver.Snapshot()
	if !frame.Settled {
		logging.Warn("layout did not settle", "ticks", ticks, "energy", frame.Energy)
	}
	if ro.fit {
		rt.controller.Fit(40)
	}

	adapter := render.NewAdapter()
	if r := opts.cfg.Viewport.NodeRadius; r > 0 {
		adapter.NodeRadius = r
	}
	scene := adapter.Primitives(frame, rt.controller.Viewport())

	if ro.output == "" {
		if err := enc.Encode(stdout, frame, scene); err != nil {
			return fmt.Errorf("rendering failed: %w", err)
		}
		return nil
	}

	file, err := os.Create(ro.output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()
	buf := bufio.NewWriter(file)
	if err := enc.Encode(buf, frame, scene); err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	done(stderr, "%s: %d nodes, %d edges, %d ticks, %s", ro.output, len(frame.Nodes), len(frame.Edges), ticks, enc.Name())
	return nil
}
