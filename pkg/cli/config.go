package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/agentmem/pkg/repository"
	"github.com/m-mizutani/agentmem/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	dir        string
	logLevel   string
	configPath string
}

// fileConfig is the layout of the optional YAML config file
type fileConfig struct {
	Dir      string `yaml:"dir"`
	LogLevel string `yaml:"log_level"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"d"},
			Usage:       "Directory where memory snapshots are stored",
			Value:       "./memory",
			Sources:     cli.EnvVars("AGENT_MEMORY_DIR"),
			Destination: &cfg.dir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("AGENT_MEMORY_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("AGENT_MEMORY_CONFIG"),
			Destination: &cfg.configPath,
		},
	}
}

// loadFile merges values from the config file. Flags and env vars win over the file.
func (cfg *config) loadFile(c *cli.Command) error {
	if cfg.configPath == "" {
		return nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}

	if fc.Dir != "" && !c.IsSet("dir") {
		cfg.dir = fc.Dir
	}
	if fc.LogLevel != "" && !c.IsSet("log-level") {
		cfg.logLevel = fc.LogLevel
	}

	return nil
}

// setup applies the config file and installs a logger writing to the command's error stream
func (cfg *config) setup(ctx context.Context, c *cli.Command) (context.Context, error) {
	if err := cfg.loadFile(c); err != nil {
		return ctx, err
	}

	logger := logging.Configure(cfg.logLevel, c.Root().ErrWriter)
	return logging.With(ctx, logger), nil
}

// newRepository creates a new repository instance
func (cfg *config) newRepository() (*repository.FileSystem, error) {
	if cfg.dir == "" {
		return nil, goerr.New("dir is required")
	}

	dir, err := filepath.Abs(cfg.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve memory directory", goerr.V("dir", cfg.dir))
	}
	return repository.New(dir), nil
}
