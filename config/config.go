// Package config loads echoview settings from defaults, a TOML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/TFMV/echoview/physics"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is read from the working directory when present
const DefaultFile = "echoview.toml"

// EnvPrefix prefixes environment overrides, e.g. ECHOVIEW_LOADER_BATCH_SIZE=50
const EnvPrefix = "ECHOVIEW_"

// Source kinds
const (
	SourceREST   = "rest"
	SourceSQLite = "sqlite"
	SourceNeo4j  = "neo4j"
	SourceFile   = "file"
	SourceDemo   = "demo"
)

// Config holds all configuration for the application
type Config struct {
	Graph    string         `koanf:"graph"`
	FPS      int            `koanf:"fps"`
	Source   SourceConfig   `koanf:"source"`
	Loader   LoaderConfig   `koanf:"loader"`
	Physics  physics.Params `koanf:"physics"`
	Viewport ViewportConfig `koanf:"viewport"`
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
}

// SourceConfig selects and configures the backing graph service
type SourceConfig struct {
	Kind          string        `koanf:"kind"`
	URL           string        `koanf:"url"`
	Tenant        string        `koanf:"tenant"`
	Token         string        `koanf:"token"`
	Timeout       time.Duration `koanf:"timeout"`
	Path          string        `koanf:"path"`
	Watch         bool          `koanf:"watch"`
	Neo4jURI      string        `koanf:"neo4j_uri"`
	Neo4jUser     string        `koanf:"neo4j_user"`
	Neo4jPassword string        `koanf:"neo4j_password"`
	Neo4jDatabase string        `koanf:"neo4j_database"`
}

// LoaderConfig bounds incremental loading
type LoaderConfig struct {
	BatchSize         int     `koanf:"batch_size"`
	MaxNodes          int     `koanf:"max_nodes"`
	MaxEdges          int     `koanf:"max_edges"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// ViewportConfig holds interaction and overlay settings
type ViewportConfig struct {
	MinScale       float64 `koanf:"min_scale"`
	MaxScale       float64 `koanf:"max_scale"`
	ClickThreshold float64 `koanf:"click_threshold"`
	NodeRadius     float64 `koanf:"node_radius"`
	TooltipOffset  float64 `koanf:"tooltip_offset"`
	TooltipMargin  float64 `koanf:"tooltip_margin"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Port int `koanf:"port"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
	File  string `koanf:"file"`
}

// flagKeys maps command-line flag names onto config keys
var flagKeys = map[string]string{
	"graph":      "graph",
	"fps":        "fps",
	"source":     "source.kind",
	"url":        "source.url",
	"tenant":     "source.tenant",
	"token":      "source.token",
	"path":       "source.path",
	"watch":      "source.watch",
	"batch-size": "loader.batch_size",
	"max-nodes":  "loader.max_nodes",
	"max-edges":  "loader.max_edges",
	"rps":        "loader.requests_per_second",
	"width":      "physics.width",
	"height":     "physics.height",
	"port":       "server.port",
	"log-level":  "log.level",
	"log-json":   "log.json",
	"log-file":   "log.file",
	"neo4j-uri":  "source.neo4j_uri",
	"neo4j-user": "source.neo4j_user",
	"neo4j-db":   "source.neo4j_database",
}

func defaults() map[string]interface{} {
	p := physics.DefaultParams()
	return map[string]interface{}{
		"graph": "",
		"fps":   60,
		"source": map[string]interface{}{
			"kind":           SourceREST,
			"url":            "http://localhost:8701",
			"tenant":         "00000000-0000-0000-0000-000000000000",
			"token":          "",
			"timeout":        "10s",
			"path":           "",
			"watch":          false,
			"neo4j_uri":      "neo4j://localhost:7687",
			"neo4j_user":     "neo4j",
			"neo4j_password": "",
			"neo4j_database": "neo4j",
		},
		"loader": map[string]interface{}{
			"batch_size":          100,
			"max_nodes":           1000,
			"max_edges":           2000,
			"requests_per_second": 10.0,
			"burst":               2,
		},
		"physics": map[string]interface{}{
			"width":            p.Width,
			"height":           p.Height,
			"margin":           p.Margin,
			"gravity":          p.Gravity,
			"repulsion":        p.Repulsion,
			"spring_length":    p.SpringLength,
			"spring_stiffness": p.SpringStiffness,
			"damping":          p.Damping,
			"min_distance":     p.MinDistance,
			"max_speed":        p.MaxSpeed,
		},
		"viewport": map[string]interface{}{
			"min_scale":       0.2,
			"max_scale":       5.0,
			"click_threshold": 3.0,
			"node_radius":     8.0,
			"tooltip_offset":  12.0,
			"tooltip_margin":  8.0,
		},
		"server": map[string]interface{}{
			"port": 8080,
		},
		"log": map[string]interface{}{
			"level": "info",
			"json":  false,
			"file":  "",
		},
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// An explicitly named file must exist; the default one is optional
	path := configFile
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if configFile != "" {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, flagValue(f)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey turns ECHOVIEW_LOADER_BATCH_SIZE into loader.batch_size. Only the first
// underscore separates section from key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// Validate reports configuration that cannot drive a session
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Kind {
	case SourceREST, SourceSQLite, SourceNeo4j, SourceFile, SourceDemo:
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q", c.Source.Kind))
	}
	if c.Loader.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("loader.batch_size must be positive, got %d", c.Loader.BatchSize))
	}
	if c.Loader.MaxNodes <= 0 || c.Loader.MaxEdges <= 0 {
		errs = append(errs, errors.New("loader.max_nodes and loader.max_edges must be positive"))
	}
	if c.Physics.Width <= 2*c.Physics.Margin || c.Physics.Height <= 2*c.Physics.Margin {
		errs = append(errs, errors.New("physics viewport must be larger than twice the margin"))
	}
	if c.Physics.Damping <= 0 || c.Physics.Damping >= 1 {
		errs = append(errs, fmt.Errorf("physics.damping must be in (0,1), got %g", c.Physics.Damping))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Viewport.MinScale <= 0 || c.Viewport.MaxScale < c.Viewport.MinScale {
		errs = append(errs, errors.New("viewport scale range is invalid"))
	}
	return errors.Join(errs...)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
