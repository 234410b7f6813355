package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/pkg/apperrors"
)

func testConfig() *config.Config {
	return &config.Config{
		Scanner: config.ScannerConfig{
			RPCTimeout:  3,
			MaxTries:    2,
			RetryDelay:  0.5,
			PubPrefix:   "STM",
			TestAccount: "someguy123",
			TestPost:    "post",
			MaxWorkers:  4,
			Plugins:     true,
			SkipAPIs:    []string{"bridge.get_trending_topics"},
		},
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(testConfig(), zap.NewNop(), nil)
	require.NoError(t, err)

	assert.Equal(t, 50, engine.MaxScore())
	assert.Equal(t, 2, engine.Options.Retry.MaxTries)
	assert.Equal(t, 7, engine.Options.Matrix.TotalProbes())
	assert.NotNil(t, engine.Fleet)
	assert.True(t, engine.Options.TestPlugins)
}

func TestNewEngineRejectsInvalidScanner(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.MaxTries = 0

	_, err := NewEngine(cfg, zap.NewNop(), nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
