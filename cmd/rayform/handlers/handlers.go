// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic: they take plain arguments, and every
// external dependency is reached through a package-level factory variable
// so tests can replace it.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/metrics"
	"github.com/imamik/rayform/internal/platform/awscloud"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/provisioning/outputs"
	"github.com/imamik/rayform/internal/topology"
	"github.com/imamik/rayform/internal/util/labels"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile locates rayform.yaml when no path is given.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads, defaults and validates a configuration file.
	loadConfigFile = config.Load

	// newInfraClient creates the EC2 client for a deployment.
	newInfraClient = func(ctx context.Context, cfg *config.Config, logger hclog.Logger) (awscloud.InfrastructureManager, error) {
		return awscloud.NewRealClient(ctx, cfg.Region,
			awscloud.WithLogger(logger.Named("aws")),
			awscloud.WithTimeouts(config.LoadTimeouts()))
	}

	// newPublisher creates the S3 publisher, or nil when none is configured.
	newPublisher = outputs.NewPublisher

	// newLogger creates the CLI logger.
	newLogger = createLogger

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// now is the clock used for metrics and outputs timestamps.
	now = time.Now
)

// createLogger honors LOG_LEVEL and colors output on terminals.
func createLogger() hclog.Logger {
	opts := &hclog.LoggerOptions{
		Name:   "rayform",
		Output: os.Stderr,
		Color:  hclog.AutoColor,
	}
	if lev := os.Getenv("LOG_LEVEL"); lev != "" {
		opts.Level = hclog.LevelFromString(lev)
	}
	return hclog.New(opts)
}

// loadConfig loads the configuration at configPath, or rayform.yaml from the
// current directory upwards when configPath is empty.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		path, err := findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("no config file found: %w\nRun 'rayform init' to create one", err)
		}
		configPath = path
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// session is everything an infrastructure command needs.
type session struct {
	cfg     *config.Config
	logger  hclog.Logger
	metrics *metrics.Recorder
	pctx    *provisioning.Context
}

func newSession(ctx context.Context, configPath string) (*session, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	topo, err := topology.Build(cfg)
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	infra, err := newInfraClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS client: %w", err)
	}

	rec := metrics.NewRecorder()
	observer := provisioning.NewHCLogObserver(logger, rec).
		WithFields(map[string]string{"deployment": cfg.Name})

	return &session{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		pctx:    provisioning.NewContext(ctx, cfg, topo, infra, observer),
	}, nil
}

// recordNodes sets the node gauges from provisioning state.
func (s *session) recordNodes() {
	head := 0
	if s.pctx.State.Head != nil {
		head = 1
	}
	workers := 0
	for i := 1; i <= s.cfg.WorkerCount(); i++ {
		if s.pctx.State.Worker(i) != nil {
			workers++
		}
	}
	s.metrics.SetNodes(labels.RoleHead, head)
	s.metrics.SetNodes(labels.RoleWorker, workers)
}

// writeMetrics writes the metrics textfile when one is configured. A failure
// is logged rather than returned so it never masks the command result.
func (s *session) writeMetrics() {
	if s.cfg.MetricsFile == "" {
		return
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile, now()); err != nil {
		s.logger.Warn("failed to write metrics", "error", err)
	}
}
