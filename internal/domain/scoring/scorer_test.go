package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

var scannedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// healthyResult builds a connected result with the given coverage over 3 stages / 8 plugins.
func healthyResult(stagesOK, pluginsOK int) entity.ScanResult {
	r := entity.NewScanResult(entity.MustEndpoint("https://api.example.com"))
	r.Connected = true
	r.ServerType = entity.ServerAppbase
	r.Network = entity.NetworkHive
	r.Version = "1.27.4"
	r.ScannedAt = scannedAt
	r.BlockTime = scannedAt.Add(-3 * time.Second)
	r.PluginsTested = true
	r.StagesTotal = 3
	r.PluginsTotal = 8

	for i := 0; i < 3; i++ {
		st := entity.StageResult{Name: "s", Passed: 1}
		if i >= stagesOK {
			st.Failed = 1
		}
		r.Stages = append(r.Stages, st)
	}
	for i := 0; i < 8; i++ {
		r.Plugins = append(r.Plugins, entity.PluginResult{Method: "m", Passed: i < pluginsOK})
	}
	r.Outcomes = []entity.ProbeOutcome{{Name: "identify", Attempts: 1, Elapsed: 200 * time.Millisecond}}
	return r
}

func TestClassify(t *testing.T) {
	scorer := NewScorer(DefaultPolicy())

	dead := entity.NewScanResult(entity.MustEndpoint("http://dead.example.com"))

	noNetwork := healthyResult(3, 8)
	noNetwork.Network = entity.NetworkError

	retried := healthyResult(3, 8)
	retried.Outcomes[0].Attempts = 3

	slow := healthyResult(3, 8)
	slow.Outcomes[0].Elapsed = 2100 * time.Millisecond

	lagging := healthyResult(3, 8)
	lagging.BlockTime = scannedAt.Add(-2 * time.Hour)

	oneStageDown := healthyResult(2, 6)

	metadataOnly := healthyResult(0, 0)
	metadataOnly.PluginsTested = false

	tests := []struct {
		name   string
		result entity.ScanResult
		score  int
		status entity.Status
	}{
		{"full success", healthyResult(3, 8), 50, entity.StatusPerfect},
		{"half plugins two stages", healthyResult(2, 4), 2, entity.StatusBad},
		{"never connected", dead, 0, entity.StatusDead},
		{"metadata missing", noNetwork, 50, entity.StatusError},
		{"retries", retried, 46, entity.StatusGood},
		{"slow", slow, 48, entity.StatusGood},
		{"lagging", lagging, 25, entity.StatusUnstable},
		{"one stage down", oneStageDown, 18, entity.StatusUnstable},
		{"nothing passes", healthyResult(0, 0), 0, entity.StatusBad},
		{"plugins disabled", metadataOnly, 50, entity.StatusPerfect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scorer.Classify(tt.result)
			assert.Equal(t, tt.score, c.Score)
			assert.Equal(t, tt.status, c.Status)
		})
	}
}

func TestDeadAlwaysScoresZero(t *testing.T) {
	scorer := NewScorer(DefaultPolicy())
	r := healthyResult(3, 8)
	r.Connected = false

	c := scorer.Classify(r)
	assert.Equal(t, entity.Classification{Score: 0, Status: entity.StatusDead}, c)
}

func TestLatencyPenaltyCapped(t *testing.T) {
	scorer := NewScorer(DefaultPolicy())
	r := healthyResult(3, 8)
	r.Outcomes[0].Elapsed = time.Minute

	assert.Equal(t, 40, scorer.Score(r))
}

func TestRPCErrorsCountTowardsLatency(t *testing.T) {
	scorer := NewScorer(DefaultPolicy())
	r := healthyResult(3, 8)
	r.Outcomes = append(r.Outcomes,
		entity.ProbeOutcome{Name: "a", Kind: entity.FailureRPCError, Attempts: 1, Elapsed: 3 * time.Second},
		entity.ProbeOutcome{Name: "b", Kind: entity.FailureTimeout, Attempts: 1, Elapsed: time.Hour},
	)

	// mean of 200ms and 3s is 1.6s: one step over nominal.
	assert.Equal(t, 49, scorer.Score(r))
}

func TestLagBandsUnsortedInput(t *testing.T) {
	p := DefaultPolicy()
	p.LagBands = []LagBand{
		{Behind: time.Minute, Penalty: 0.1},
		{Behind: time.Hour, Penalty: 0.5},
	}
	scorer := NewScorer(p)

	r := healthyResult(3, 8)
	r.BlockTime = scannedAt.Add(-3 * time.Hour)
	assert.Equal(t, 25, scorer.Score(r))
}

func TestIsGood(t *testing.T) {
	assert.True(t, IsGood(entity.Classification{Score: 50, Status: entity.StatusPerfect}, 40))
	assert.True(t, IsGood(entity.Classification{Score: 40, Status: entity.StatusGood}, 40))
	assert.False(t, IsGood(entity.Classification{Score: 42, Status: entity.StatusGood}, 45))
	assert.False(t, IsGood(entity.Classification{Score: 50, Status: entity.StatusError}, 0))
	assert.False(t, IsGood(entity.Classification{Score: 0, Status: entity.StatusDead}, 0))
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MaxScore = 0
	assert.ErrorIs(t, p.Validate(), apperrors.ErrInvalidInput)

	p = DefaultPolicy()
	p.BadThreshold = 45
	assert.ErrorIs(t, p.Validate(), apperrors.ErrInvalidInput)

	p = DefaultPolicy()
	p.RetryPenalty = -1
	assert.ErrorIs(t, p.Validate(), apperrors.ErrInvalidInput)
}

func TestLagFloors(t *testing.T) {
	scorer := NewScorer(DefaultPolicy())

	tests := []struct {
		name   string
		result func() entity.ScanResult
		want   int
	}{
		{
			name: "in sync node untouched",
			result: func() entity.ScanResult {
				return healthyResult(2, 6)
			},
			want: 18,
		},
		{
			name: "above half lifted to ten percent",
			result: func() entity.ScanResult {
				r := healthyResult(3, 6)
				r.BlockTime = scannedAt.Add(-25 * time.Hour)
				return r
			},
			want: 5,
		},
		{
			name: "above a fifth lifted to five percent",
			result: func() entity.ScanResult {
				r := healthyResult(2, 6)
				r.BlockTime = scannedAt.Add(-2 * time.Hour)
				return r
			},
			want: 2,
		},
		{
			name: "weak node not lifted",
			result: func() entity.ScanResult {
				r := healthyResult(2, 4)
				r.BlockTime = scannedAt.Add(-2 * time.Hour)
				return r
			},
			want: 0,
		},
		{
			name: "lag leaving score above rescue line",
			result: func() entity.ScanResult {
				r := healthyResult(3, 8)
				r.BlockTime = scannedAt.Add(-25 * time.Hour)
				return r
			},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scorer.Score(tt.result()))
		})
	}
}

func TestLagFloorsDisabled(t *testing.T) {
	p := DefaultPolicy()
	p.LagFloors = nil
	scorer := NewScorer(p)

	r := healthyResult(3, 6)
	r.BlockTime = scannedAt.Add(-25 * time.Hour)
	assert.Equal(t, 0, scorer.Score(r))
}
