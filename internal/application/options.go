package application

import (
	"fmt"
	"time"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain/capability"
	"rpc-scanner/internal/pkg/apperrors"
)

// ScanOptions is the immutable configuration handed to scanners at construction.
type ScanOptions struct {
	Retry        RetryPolicy
	ProbeTimeout time.Duration
	Matrix       *capability.Matrix
	// TestPlugins enables the capability stages. Without it only connectivity and metadata are probed.
	TestPlugins bool
	MaxWorkers  int
}

// Validate rejects options that would make every endpoint look dead or hang forever.
func (o ScanOptions) Validate() error {
	if err := o.Retry.Validate(); err != nil {
		return err
	}
	if o.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: probe timeout must be positive, got %v", apperrors.ErrInvalidInput, o.ProbeTimeout)
	}
	if o.Matrix == nil {
		return fmt.Errorf("%w: capability matrix is required", apperrors.ErrInvalidInput)
	}
	if o.MaxWorkers < 1 {
		return fmt.Errorf("%w: max workers must be at least 1, got %d", apperrors.ErrInvalidInput, o.MaxWorkers)
	}
	return nil
}

// OptionsFromConfig collects scanner settings once into ScanOptions.
func OptionsFromConfig(cfg config.ScannerConfig) (ScanOptions, error) {
	matrix := capability.Default(capability.Bindings{
		Account:   cfg.TestAccount,
		Post:      cfg.TestPost,
		PubPrefix: cfg.PubPrefix,
	}).Filter(capability.FilterOptions{
		Only:  cfg.TestPluginList,
		Skip:  cfg.SkipAPIs,
		Extra: cfg.ExtraPluginsList,
	})

	opts := ScanOptions{
		Retry: RetryPolicy{
			MaxTries: cfg.MaxTries,
			Delay:    cfg.GetRetryDelay(),
		},
		ProbeTimeout: cfg.GetTimeout(),
		Matrix:       matrix,
		TestPlugins:  cfg.Plugins,
		MaxWorkers:   cfg.MaxWorkers,
	}
	if err := opts.Validate(); err != nil {
		return ScanOptions{}, err
	}
	return opts, nil
}
