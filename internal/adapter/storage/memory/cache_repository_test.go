package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
)

func newRepo() *CacheRepository {
	return NewCacheRepository(config.CacheConfig{TTL: time.Minute, CleanupInterval: time.Minute}, zap.NewNop())
}

func classified(url string, status entity.Status, score int) entity.ClassifiedResult {
	return entity.ClassifiedResult{
		ScanResult:     entity.NewScanResult(entity.MustEndpoint(url)),
		Classification: entity.Classification{Score: score, Status: status},
	}
}

func TestFleetRoundTrip(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()

	_, found, err := repo.GetFleet(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	report := []entity.ClassifiedResult{
		classified("https://a.example.com", entity.StatusPerfect, 50),
		classified("https://b.example.com", entity.StatusDead, 0),
	}
	require.NoError(t, repo.SetFleet(ctx, report, 0))
	report[0].Score = 1

	got, found, err := repo.GetFleet(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got, 2)
	assert.Equal(t, 50, got[0].Score)
	assert.Equal(t, entity.StatusDead, got[1].Status)
}

func TestNodeRoundTripAndExpiry(t *testing.T) {
	repo := newRepo()
	ctx := context.Background()
	result := classified("https://a.example.com", entity.StatusGood, 44)

	require.NoError(t, repo.SetNode(ctx, result, 50*time.Millisecond))

	got, found, err := repo.GetNode(ctx, result.Endpoint)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 44, got.Score)

	_, found, err = repo.GetNode(ctx, entity.MustEndpoint("https://other.example.com"))
	require.NoError(t, err)
	assert.False(t, found)

	require.Eventually(t, func() bool {
		_, found, _ := repo.GetNode(ctx, result.Endpoint)
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestTypeMismatch(t *testing.T) {
	repo := newRepo()
	repo.cache.Set(fleetReportKey, "not a report", time.Minute)

	_, found, err := repo.GetFleet(context.Background())
	assert.False(t, found)
	assert.ErrorIs(t, err, domain.ErrCacheFailure)
}
