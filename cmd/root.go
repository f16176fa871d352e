// Package cmd holds the echoview command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/TFMV/echoview/config"
	"github.com/TFMV/echoview/logging"
	"github.com/spf13/cobra"
)

var version = "0.3.0"

// rootOptions carries state from the root command's pre-run to subcommands
type rootOptions struct {
	configFile string
	cfg        *config.Config
	logFile    *os.File
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "echoview",
		Short: "echoview: live force-directed graph viewer",
		Long: brand.Sprint("echoview") + " streams a graph from a backing service into a live layout\n" +
			subtle.Sprint("Serve it over HTTP, explore it in the terminal or render it offline"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			opts.close()
		},
	}
	root.SetVersionTemplate("echoview {{ .Version }}\n")

	f := root.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default ./"+config.DefaultFile+" when present)")
	f.StringP("graph", "g", "", "GUID of the graph to load (default: the first one listed)")
	f.StringP("source", "s", config.SourceREST, "graph source: rest, sqlite, neo4j, file, demo")
	f.String("url", "", "base URL of the REST graph service")
	f.String("tenant", "", "tenant GUID for the REST graph service")
	f.String("token", "", "bearer token for the REST graph service")
	f.String("path", "", "SQLite database or graph file path")
	f.Bool("watch", false, "reload a graph file when it changes")
	f.String("neo4j-uri", "", "Neo4j bolt URI")
	f.String("neo4j-user", "", "Neo4j user")
	f.String("neo4j-db", "", "Neo4j database")
	f.Int("batch-size", 100, "records requested per page")
	f.Int("max-nodes", 1000, "maximum nodes loaded per graph")
	f.Int("max-edges", 2000, "maximum edges loaded per graph")
	f.Float64("rps", 10, "page requests per second (0 for unlimited)")
	f.Int("fps", 60, "simulation ticks per second")
	f.Float64("width", 800, "layout width")
	f.Float64("height", 600, "layout height")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.Bool("log-json", false, "log as JSON")
	f.String("log-file", "", "write logs to a file")

	root.AddCommand(
		serveCmd(opts),
		viewCmd(opts),
		renderCmd(opts),
		seedCmd(opts),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		bad.Fprintf(os.Stderr, "echoview: %v\n", err)
	}
	return err
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags(), o.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.cfg = cfg

	logging.SetLevel(logging.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logFile = f
		logging.SetOutput(f)
	}
	if cfg.Log.JSON {
		logging.SetJSONOutput()
	}
	return nil
}

func (o *rootOptions) close() {
	if o.logFile != nil {
		logging.SetOutput(os.Stderr)
		o.logFile.Close()
		o.logFile = nil
	}
}
