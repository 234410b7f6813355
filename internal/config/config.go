package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rpc-scanner/internal/pkg/apperrors"
)

// Config holds all configuration for the application.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Health  HealthConfig  `mapstructure:"health"`
	Nodes   NodesConfig   `mapstructure:"nodes"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// ScannerConfig holds the probe, retry and capability settings.
type ScannerConfig struct {
	// RPCTimeout and RetryDelay are seconds.
	RPCTimeout       float64  `mapstructure:"rpc_timeout"`
	MaxTries         int      `mapstructure:"max_tries"`
	RetryDelay       float64  `mapstructure:"retry_delay"`
	PubPrefix        string   `mapstructure:"pub_prefix"`
	TestAccount      string   `mapstructure:"test_account"`
	TestPost         string   `mapstructure:"test_post"`
	MaxWorkers       int      `mapstructure:"max_workers"`
	Plugins          bool     `mapstructure:"plugins"`
	SkipAPIs         []string `mapstructure:"skip_apis"`
	TestPluginList   []string `mapstructure:"test_plugin_list"`
	ExtraPluginsList []string `mapstructure:"extra_plugins_list"`
}

// HealthConfig holds the single-endpoint exit code policy.
type HealthConfig struct {
	GoodReturnCode int `mapstructure:"good_return_code"`
	BadReturnCode  int `mapstructure:"bad_return_code"`
	MinScore       int `mapstructure:"min_score"`
}

// NodesConfig points at the node list.
type NodesConfig struct {
	File string `mapstructure:"file"`
}

// CacheConfig holds settings for the API report cache.
type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"server.port":                "API_PORT",
	"logger.level":               "LOG_LEVEL",
	"logger.encoding":            "LOG_ENCODING",
	"scanner.rpc_timeout":        "RPC_TIMEOUT",
	"scanner.max_tries":          "MAX_TRIES",
	"scanner.retry_delay":        "RETRY_DELAY",
	"scanner.pub_prefix":         "PUB_PREFIX",
	"scanner.test_account":       "TEST_ACCOUNT",
	"scanner.test_post":          "TEST_POST",
	"scanner.max_workers":        "MAX_WORKERS",
	"scanner.plugins":            "PLUGINS",
	"scanner.skip_apis":          "SKIP_APIS",
	"scanner.test_plugin_list":   "TEST_PLUGIN_LIST",
	"scanner.extra_plugins_list": "EXTRA_PLUGINS_LIST",
	"health.good_return_code":    "GOOD_RETURN_CODE",
	"health.bad_return_code":     "BAD_RETURN_CODE",
	"health.min_score":           "MIN_SCORE",
	"nodes.file":                 "NODE_FILE",
	"cache.ttl":                  "API_CACHE_TTL",
	"cache.cleanup_interval":     "API_CACHE_CLEANUP_INTERVAL",
	"cache.refresh_interval":     "API_REFRESH_INTERVAL",
}

// Load reads configuration from .env, an optional config.yaml and the environment.
// Environment variables win over the file.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", apperrors.ErrInvalidInput, err)
	}

	v := viper.New()

	v.SetDefault("app.name", "rpc-scanner")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("scanner.rpc_timeout", 3.0)
	v.SetDefault("scanner.max_tries", 3)
	v.SetDefault("scanner.retry_delay", 2.0)
	v.SetDefault("scanner.pub_prefix", "STM")
	v.SetDefault("scanner.test_account", "someguy123")
	v.SetDefault("scanner.test_post", "announcement-soft-fork-0-22-2-released-steem-in-a-box-update")
	v.SetDefault("scanner.max_workers", 10)
	v.SetDefault("scanner.plugins", true)
	v.SetDefault("scanner.skip_apis", []string{})
	v.SetDefault("scanner.test_plugin_list", []string{})
	v.SetDefault("scanner.extra_plugins_list", []string{})
	v.SetDefault("health.good_return_code", 0)
	v.SetDefault("health.bad_return_code", 8)
	v.SetDefault("health.min_score", 40)
	v.SetDefault("nodes.file", "nodes.conf")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.refresh_interval", "0s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("%w: failed to read config file: %v", apperrors.ErrInvalidInput, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %v", apperrors.ErrInvalidInput, err)
	}

	cfg.Scanner.SkipAPIs = cleanList(cfg.Scanner.SkipAPIs)
	cfg.Scanner.TestPluginList = cleanList(cfg.Scanner.TestPluginList)
	cfg.Scanner.ExtraPluginsList = cleanList(cfg.Scanner.ExtraPluginsList)

	return &cfg, nil
}

// Validate rejects settings that must never reach a scan.
func (c *Config) Validate() error {
	s := c.Scanner
	if s.MaxTries < 1 {
		return fmt.Errorf("%w: MAX_TRIES must be at least 1, got %d", apperrors.ErrInvalidInput, s.MaxTries)
	}
	if s.RPCTimeout <= 0 {
		return fmt.Errorf("%w: RPC_TIMEOUT must be positive, got %g", apperrors.ErrInvalidInput, s.RPCTimeout)
	}
	if s.RetryDelay < 0 {
		return fmt.Errorf("%w: RETRY_DELAY cannot be negative, got %g", apperrors.ErrInvalidInput, s.RetryDelay)
	}
	if s.MaxWorkers < 1 {
		return fmt.Errorf("%w: MAX_WORKERS must be at least 1, got %d", apperrors.ErrInvalidInput, s.MaxWorkers)
	}
	for name, code := range map[string]int{
		"GOOD_RETURN_CODE": c.Health.GoodReturnCode,
		"BAD_RETURN_CODE":  c.Health.BadReturnCode,
	} {
		if code < 0 || code > 254 {
			return fmt.Errorf("%w: %s must be within 0-254, got %d", apperrors.ErrInvalidInput, name, code)
		}
	}
	if c.Cache.TTL < 0 || c.Cache.RefreshInterval < 0 {
		return fmt.Errorf("%w: cache durations cannot be negative", apperrors.ErrInvalidInput)
	}
	return nil
}

// GetTimeout returns the per-probe deadline.
func (c ScannerConfig) GetTimeout() time.Duration {
	return seconds(c.RPCTimeout)
}

// GetRetryDelay returns the pause between attempts.
func (c ScannerConfig) GetRetryDelay() time.Duration {
	return seconds(c.RetryDelay)
}

func (c CacheConfig) GetTTL() time.Duration {
	return c.TTL
}

func (c CacheConfig) GetCleanupInterval() time.Duration {
	return c.CleanupInterval
}

func (c CacheConfig) GetRefreshInterval() time.Duration {
	return c.RefreshInterval
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
