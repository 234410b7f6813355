package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"rpc-scanner/internal/domain/capability"
	"rpc-scanner/internal/domain/entity"
	domainService "rpc-scanner/internal/domain/service"
	"rpc-scanner/internal/pkg/apperrors"
)

// IdentifyProbe names the connectivity probe in outcomes.
const IdentifyProbe = "identify"

// NodeScanner drives the probe sequence for one endpoint: connectivity, metadata, then capability stages.
type NodeScanner struct {
	client  domainService.ProbeClient
	opts    ScanOptions
	logger  *zap.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewNodeScanner validates opts and creates a scanner.
func NewNodeScanner(
	client domainService.ProbeClient,
	opts ScanOptions,
	logger *zap.Logger,
	metrics MetricsRecorder,
) (*NodeScanner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &NodeScanner{
		client:  client,
		opts:    opts,
		logger:  logger.Named("NodeScanner"),
		metrics: recorderOrNop(metrics),
		now:     time.Now,
	}, nil
}

// Options returns the options the scanner was built with.
func (s *NodeScanner) Options() ScanOptions {
	return s.opts
}

// Scan probes endpoint and returns the finished result. Probe failures are recorded, never returned.
func (s *NodeScanner) Scan(ctx context.Context, endpoint entity.Endpoint) entity.ScanResult {
	log := s.logger.With(zap.Stringer("endpoint", endpoint))
	result := entity.NewScanResult(endpoint)
	result.ScannedAt = s.now().UTC()
	result.PluginsTested = s.opts.TestPlugins
	if s.opts.TestPlugins {
		result.StagesTotal = s.opts.Matrix.TotalStages()
		result.PluginsTotal = s.opts.Matrix.TotalProbes()
	}

	identity, outcome := Retry(ctx, s.opts.Retry, IdentifyProbe, func(ctx context.Context) (entity.Identity, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
		defer cancel()
		return s.client.Identify(attemptCtx, endpoint)
	})
	s.observe(outcome)
	result.Outcomes = append(result.Outcomes, outcome)

	if !outcome.Responded() {
		log.Debug("Endpoint unreachable, aborting scan",
			zap.Stringer("kind", outcome.Kind),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(outcome.Err),
		)
		result.ErrReason = outcome.ErrorString()
		return result
	}

	result.Connected = true
	result.ServerType = identity.ServerType
	if result.ServerType == "" {
		result.ServerType = entity.ServerUnknown
	}

	if identity.WebsocketOnly {
		log.Info("Endpoint only answers over websocket")
		result.ErrReason = entity.ErrReasonWebsocketOnly
		return result
	}

	s.scanMetadata(ctx, endpoint, &result)
	log.Debug("Metadata collected",
		zap.String("serverType", string(result.ServerType)),
		zap.String("network", string(result.Network)),
		zap.String("version", result.Version),
		zap.Int64("headBlock", result.HeadBlock),
	)

	if !s.opts.TestPlugins {
		return result
	}

	for _, stage := range s.opts.Matrix.Stages() {
		run := s.runStage(ctx, endpoint, s.opts.Matrix, stage)
		result.Stages = append(result.Stages, run.stage)
		result.Plugins = append(result.Plugins, run.plugins...)
		result.Outcomes = append(result.Outcomes, run.outcomes...)

		log.Info("Stage finished",
			zap.String("stage", stage.Name),
			zap.Int("passed", run.stage.Passed),
			zap.Int("failed", run.stage.Failed),
		)
	}

	return result
}

// scanMetadata queries config and dynamic global properties concurrently.
// Either may fail on its own; the fields it would fill keep their "error" placeholders.
func (s *NodeScanner) scanMetadata(ctx context.Context, endpoint entity.Endpoint, result *entity.ScanResult) {
	var (
		wg         sync.WaitGroup
		cfg        domainService.ChainConfig
		state      domainService.ChainState
		cfgOutcome entity.ProbeOutcome
		dgpOutcome entity.ProbeOutcome
	)

	configMethod := domainService.MetadataMethod(result.ServerType, domainService.MethodConfig)
	propsMethod := domainService.MetadataMethod(result.ServerType, domainService.MethodDynamicProps)

	wg.Add(2)
	go func() {
		defer wg.Done()
		cfg, cfgOutcome = probeAndParse(ctx, s, endpoint, configMethod, domainService.ParseConfig)
	}()
	go func() {
		defer wg.Done()
		state, dgpOutcome = probeAndParse(ctx, s, endpoint, propsMethod, domainService.ParseDynamicProps)
	}()
	wg.Wait()

	result.Outcomes = append(result.Outcomes, cfgOutcome, dgpOutcome)

	network := entity.NetworkError
	if cfgOutcome.Succeeded() {
		result.Version = cfg.Version
		network = cfg.Network
	}
	if dgpOutcome.Succeeded() {
		result.HeadBlock = state.HeadBlock
		result.IrreversibleBlock = state.IrreversibleBlock
		result.BlockTime = state.BlockTime
		if state.Network.Known() {
			network = state.Network
		}
	}
	result.Network = network

	for _, o := range []entity.ProbeOutcome{cfgOutcome, dgpOutcome} {
		if !o.Succeeded() && result.ErrReason == "" {
			result.ErrReason = o.ErrorString()
		}
	}
}

// probeAndParse calls method with retries. A result that fails to parse counts as a malformed
// response and is retried like one.
func probeAndParse[T any](
	ctx context.Context,
	s *NodeScanner,
	endpoint entity.Endpoint,
	method string,
	parse func(json.RawMessage) (T, error),
) (value T, outcome entity.ProbeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while probing metadata",
				zap.Stringer("endpoint", endpoint), zap.String("method", method), zap.Any("panic", r),
			)
			outcome = entity.ProbeOutcome{
				Name:     method,
				Kind:     entity.FailureTransport,
				Attempts: 1,
				Err:      fmt.Errorf("%w: panic probing %s: %v", apperrors.ErrInternal, method, r),
			}
			s.observe(outcome)
		}
	}()

	value, outcome = Retry(ctx, s.opts.Retry, method, func(ctx context.Context) (T, error) {
		var zero T
		raw, err := s.callOnce(ctx, endpoint, method, nil)
		if err != nil {
			return zero, err
		}
		parsed, err := parse(raw)
		if err != nil {
			return zero, &entity.ProbeError{
				Kind:     entity.FailureMalformedResponse,
				Endpoint: endpoint,
				Method:   method,
				Err:      err,
			}
		}
		return parsed, nil
	})
	s.observe(outcome)
	if !outcome.Succeeded() {
		s.logger.Debug("Metadata probe failed",
			zap.Stringer("endpoint", endpoint),
			zap.String("method", method),
			zap.Stringer("kind", outcome.Kind),
			zap.Error(outcome.Err),
		)
	}
	return value, outcome
}

// callOnce performs a single call bounded by the probe timeout.
func (s *NodeScanner) callOnce(
	ctx context.Context,
	endpoint entity.Endpoint,
	method string,
	params json.RawMessage,
) (json.RawMessage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()
	return s.client.Call(attemptCtx, endpoint, method, params)
}

type stageRun struct {
	stage    entity.StageResult
	plugins  []entity.PluginResult
	outcomes []entity.ProbeOutcome
}

// runStage probes every definition of stage concurrently and collects results in catalogue order.
func (s *NodeScanner) runStage(
	ctx context.Context,
	endpoint entity.Endpoint,
	matrix *capability.Matrix,
	stage capability.Stage,
) stageRun {
	run := stageRun{
		stage:    entity.StageResult{Name: stage.Name},
		plugins:  make([]entity.PluginResult, len(stage.Probes)),
		outcomes: make([]entity.ProbeOutcome, len(stage.Probes)),
	}

	var wg sync.WaitGroup
	for i, def := range stage.Probes {
		wg.Add(1)
		go func(i int, def capability.ProbeDefinition) {
			defer wg.Done()
			run.plugins[i], run.outcomes[i] = s.runProbe(ctx, endpoint, matrix, stage.Name, def)
		}(i, def)
	}
	wg.Wait()

	// probes that never reached the endpoint carry no timing or retry data
	attempted := run.outcomes[:0]
	for _, o := range run.outcomes {
		if o.Attempts > 0 {
			attempted = append(attempted, o)
		}
	}
	run.outcomes = attempted

	for _, p := range run.plugins {
		if p.Passed {
			run.stage.Passed++
		} else {
			run.stage.Failed++
		}
	}
	return run
}

// runProbe calls one capability method and validates its answer. Validation is not retried.
func (s *NodeScanner) runProbe(
	ctx context.Context,
	endpoint entity.Endpoint,
	matrix *capability.Matrix,
	stageName string,
	def capability.ProbeDefinition,
) (plugin entity.PluginResult, outcome entity.ProbeOutcome) {
	plugin = entity.PluginResult{Method: def.Method, Stage: stageName}
	outcome = entity.ProbeOutcome{Name: def.Method}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while probing capability",
				zap.Stringer("endpoint", endpoint), zap.String("method", def.Method), zap.Any("panic", r),
			)
			plugin.Passed = false
			plugin.Error = fmt.Sprintf("%v: %v", apperrors.ErrInternal, r)
			if outcome.Attempts == 0 {
				outcome.Kind = entity.FailureTransport
				outcome.Attempts = 1
				outcome.Err = fmt.Errorf("%w: panic probing %s: %v", apperrors.ErrInternal, def.Method, r)
				s.observe(outcome)
			}
		}
	}()

	params, err := matrix.Params(def)
	if err != nil {
		plugin.Error = err.Error()
		return plugin, outcome
	}

	raw, outcome := Retry(ctx, s.opts.Retry, def.Method, func(ctx context.Context) (json.RawMessage, error) {
		return s.callOnce(ctx, endpoint, def.Method, params)
	})
	s.observe(outcome)

	if !outcome.Succeeded() {
		s.logger.Debug("Capability probe failed",
			zap.Stringer("endpoint", endpoint),
			zap.String("method", def.Method),
			zap.Stringer("kind", outcome.Kind),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(outcome.Err),
		)
		plugin.Error = outcome.ErrorString()
		return plugin, outcome
	}

	if err := matrix.Validate(def, raw); err != nil {
		s.logger.Debug("Capability probe returned unexpected data",
			zap.Stringer("endpoint", endpoint),
			zap.String("method", def.Method),
			zap.Error(err),
		)
		plugin.Error = err.Error()
		return plugin, outcome
	}

	plugin.Passed = true
	return plugin, outcome
}

// MethodReport is the outcome of testing an explicit list of methods.
type MethodReport struct {
	Plugins  []entity.PluginResult
	Outcomes []entity.ProbeOutcome
}

// Passed counts passing methods.
func (r MethodReport) Passed() int {
	n := 0
	for _, p := range r.Plugins {
		if p.Passed {
			n++
		}
	}
	return n
}

// TestMethods probes defs against endpoint without identification or metadata.
func (s *NodeScanner) TestMethods(
	ctx context.Context,
	endpoint entity.Endpoint,
	defs []capability.ProbeDefinition,
) MethodReport {
	run := s.runStage(ctx, endpoint, s.opts.Matrix, capability.Stage{Name: "methods", Probes: defs})
	return MethodReport{Plugins: run.plugins, Outcomes: run.outcomes}
}

func (s *NodeScanner) observe(o entity.ProbeOutcome) {
	s.metrics.ObserveProbe(o.Name, o.Kind.String(), o.Attempts, o.Elapsed)
}
