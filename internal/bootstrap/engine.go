package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"rpc-scanner/internal/adapter/rpc"
	"rpc-scanner/internal/application"
	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain/scoring"
)

// ConfigPath is the directory searched for config.yaml besides the working directory.
const ConfigPath = "configs"

// Engine holds the scanning components every entry point shares.
type Engine struct {
	Config  *config.Config
	Options application.ScanOptions
	Scorer  *scoring.Scorer
	Scanner *application.NodeScanner
	Fleet   *application.FleetScanner
}

// LoadConfig loads and validates configuration. Any error here is fatal for the caller.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewEngine wires the RPC client, node scanner, scorer and fleet scanner from cfg.
// metrics may be nil.
func NewEngine(cfg *config.Config, logger *zap.Logger, metrics application.MetricsRecorder) (*Engine, error) {
	opts, err := application.OptionsFromConfig(cfg.Scanner)
	if err != nil {
		return nil, fmt.Errorf("invalid scanner configuration: %w", err)
	}

	client := rpc.NewClient(opts.ProbeTimeout, logger)

	scanner, err := application.NewNodeScanner(client, opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(scoring.DefaultPolicy())
	fleet := application.NewFleetScanner(scanner, scorer, opts.MaxWorkers, logger, metrics)

	logger.Debug("Scan engine initialized",
		zap.Int("maxTries", opts.Retry.MaxTries),
		zap.Duration("retryDelay", opts.Retry.Delay),
		zap.Duration("probeTimeout", opts.ProbeTimeout),
		zap.Int("maxWorkers", opts.MaxWorkers),
		zap.Bool("plugins", opts.TestPlugins),
		zap.Strings("methods", opts.Matrix.Methods()),
	)

	return &Engine{
		Config:  cfg,
		Options: opts,
		Scorer:  scorer,
		Scanner: scanner,
		Fleet:   fleet,
	}, nil
}

// MaxScore is the score of a flawless endpoint under the engine's policy.
func (e *Engine) MaxScore() int {
	return int(e.Scorer.Policy().MaxScore)
}
