package entity

import (
	"time"
)

// ServerType identifies what answered on the endpoint: a raw node or a gateway in front of one.
type ServerType string

// Known server types.
const (
	ServerJussi   ServerType = "jussi"
	ServerAppbase ServerType = "appbase"
	ServerLegacy  ServerType = "legacy"
	ServerUnknown ServerType = "unknown"
	ServerError   ServerType = "err"
)

// IsGateway reports whether requests are proxied through a gateway layer.
func (s ServerType) IsGateway() bool {
	return s == ServerJussi
}

// Network is the blockchain an endpoint serves.
type Network string

// Known networks.
const (
	NetworkHive        Network = "Hive"
	NetworkSteem       Network = "Steem"
	NetworkGolos       Network = "Golos"
	NetworkWhaleshares Network = "Whaleshares"
	NetworkUnknown     Network = "Unknown"
	NetworkError       Network = "error"
)

// Known reports whether the network was positively identified.
func (n Network) Known() bool {
	return n != NetworkUnknown && n != NetworkError && n != ""
}

// VersionError is the version recorded when it could not be determined.
const VersionError = "error"

// Status is the classification label of a scanned endpoint.
type Status string

// Statuses, best first.
const (
	StatusPerfect  Status = "PERFECT"
	StatusGood     Status = "GOOD"
	StatusUnstable Status = "UNSTABLE"
	StatusBad      Status = "BAD"
	StatusError    Status = "ERROR"
	StatusDead     Status = "DEAD"
)

// Rank orders statuses for sorting, higher is healthier.
func (s Status) Rank() int {
	switch s {
	case StatusPerfect:
		return 5
	case StatusGood:
		return 4
	case StatusUnstable:
		return 3
	case StatusBad:
		return 2
	case StatusError:
		return 1
	default:
		return 0
	}
}

// Classification is the score and status derived from a ScanResult.
type Classification struct {
	Score  int    `json:"score" yaml:"score"`
	Status Status `json:"status" yaml:"status"`
}

// StageResult holds pass/fail counts for one catalogue stage.
type StageResult struct {
	Name   string `json:"name" yaml:"name"`
	Passed int    `json:"passed" yaml:"passed"`
	Failed int    `json:"failed" yaml:"failed"`
}

// OK reports whether every probe of the stage passed.
func (s StageResult) OK() bool {
	return s.Failed == 0 && s.Passed > 0
}

// PluginResult records one capability probe.
type PluginResult struct {
	Method string `json:"method" yaml:"method"`
	Stage  string `json:"stage" yaml:"stage"`
	Passed bool   `json:"passed" yaml:"passed"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ScanResult is everything learned about one endpoint in one scan.
type ScanResult struct {
	Endpoint          Endpoint       `json:"endpoint" yaml:"endpoint"`
	Connected         bool           `json:"connected" yaml:"connected"`
	ServerType        ServerType     `json:"server_type" yaml:"server_type"`
	Network           Network        `json:"network" yaml:"network"`
	Version           string         `json:"version" yaml:"version"`
	HeadBlock         int64          `json:"head_block" yaml:"head_block"`
	IrreversibleBlock int64          `json:"irreversible_block" yaml:"irreversible_block"`
	BlockTime         time.Time      `json:"block_time" yaml:"block_time"`
	ScannedAt         time.Time      `json:"scanned_at" yaml:"scanned_at"`
	ErrReason         string         `json:"err_reason,omitempty" yaml:"err_reason,omitempty"`
	PluginsTested     bool           `json:"plugins_tested" yaml:"plugins_tested"`
	StagesTotal       int            `json:"stages_total" yaml:"stages_total"`
	PluginsTotal      int            `json:"plugins_total" yaml:"plugins_total"`
	Stages            []StageResult  `json:"stages" yaml:"stages"`
	Plugins           []PluginResult `json:"plugins" yaml:"plugins"`
	Outcomes          []ProbeOutcome `json:"outcomes" yaml:"outcomes"`
}

// NewScanResult returns a result with every metadata field set to its "error" placeholder.
func NewScanResult(endpoint Endpoint) ScanResult {
	return ScanResult{
		Endpoint:   endpoint,
		ServerType: ServerError,
		Network:    NetworkError,
		Version:    VersionError,
	}
}

// StagesPassed counts stages where every probe passed.
func (r ScanResult) StagesPassed() int {
	n := 0
	for _, s := range r.Stages {
		if s.OK() {
			n++
		}
	}
	return n
}

// PluginsPassed counts passing capability probes.
func (r ScanResult) PluginsPassed() int {
	n := 0
	for _, p := range r.Plugins {
		if p.Passed {
			n++
		}
	}
	return n
}

// PassedPlugins lists the methods that passed, in catalogue order.
func (r ScanResult) PassedPlugins() []string {
	out := make([]string, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		if p.Passed {
			out = append(out, p.Method)
		}
	}
	return out
}

// BrokenPlugins lists the methods that failed, in catalogue order.
func (r ScanResult) BrokenPlugins() []string {
	out := make([]string, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		if !p.Passed {
			out = append(out, p.Method)
		}
	}
	return out
}

// Retries sums the retries consumed by every probe.
func (r ScanResult) Retries() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Retries()
	}
	return n
}

// AvgRetries is the mean number of attempts per probe.
func (r ScanResult) AvgRetries() float64 {
	if len(r.Outcomes) == 0 {
		return 0
	}
	attempts := 0
	for _, o := range r.Outcomes {
		attempts += o.Attempts
	}
	return float64(attempts) / float64(len(r.Outcomes))
}

// AvgResponseTime is the mean elapsed time of probes that got an answer.
func (r ScanResult) AvgResponseTime() time.Duration {
	var total time.Duration
	n := 0
	for _, o := range r.Outcomes {
		if !o.Responded() {
			continue
		}
		total += o.Elapsed
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// TimeBehind is how far the head block lags the moment of the scan. Zero when unknown.
func (r ScanResult) TimeBehind() time.Duration {
	if r.BlockTime.IsZero() || r.ScannedAt.IsZero() {
		return 0
	}
	lag := r.ScannedAt.Sub(r.BlockTime)
	if lag < 0 {
		return 0
	}
	return lag
}

// MetadataKnown reports whether both network and version were identified.
func (r ScanResult) MetadataKnown() bool {
	return r.Network.Known() && r.Version != "" && r.Version != VersionError
}

// ClassifiedResult pairs a ScanResult with its Classification.
type ClassifiedResult struct {
	ScanResult     `yaml:",inline"`
	Classification `yaml:",inline"`
}

// Identity is what the connectivity probe learned about the server behind an endpoint.
type Identity struct {
	ServerType ServerType `json:"server_type" yaml:"server_type"`
	// WebsocketOnly is set when plain HTTP was refused with 426 but a websocket JSON-RPC answered.
	WebsocketOnly bool `json:"websocket_only" yaml:"websocket_only"`
}

// ErrReasonWebsocketOnly is recorded for endpoints that only speak JSON-RPC over websockets.
const ErrReasonWebsocketOnly = "WS Only"
