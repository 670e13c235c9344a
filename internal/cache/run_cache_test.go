package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/config"
	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsHashIgnoresClockTime(t *testing.T) {
	p := domain.DefaultSuggestParams()
	p.ReferenceTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	q := p
	q.ReferenceTime = time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)

	assert.Equal(t, paramsHash("db", p), paramsHash("db", q))

	q.ReferenceTime = q.ReferenceTime.AddDate(0, 0, 1)
	assert.NotEqual(t, paramsHash("db", p), paramsHash("db", q))

	r := p
	r.ForecastMethod = domain.ForecastTrend
	assert.NotEqual(t, paramsHash("db", p), paramsHash("db", r))
	assert.NotEqual(t, paramsHash("db", p), paramsHash("csv", p))
}

func TestParamsHashSeparatesLocations(t *testing.T) {
	p := domain.DefaultSuggestParams()
	p.ReferenceTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.NotEqual(t, paramsHash("csv:/a", p), paramsHash("csv:/b", p))
	assert.NotEqual(t, paramsHash("csv:/Data", p), paramsHash("csv:/data", p))
	assert.NotEqual(t, paramsHash(domain.SourceKey("s3", "inputs/x"), p), paramsHash(domain.SourceKey("s3", "inputs/y"), p))
	assert.Equal(t, paramsHash(domain.SourceKey(" CSV", "/a"), p), paramsHash(domain.SourceKey("csv", "/a"), p))
}

func TestParamsHashUsesUTCDate(t *testing.T) {
	p := domain.DefaultSuggestParams()
	p.ReferenceTime = time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	q := p
	q.ReferenceTime = time.Date(2024, 3, 2, 1, 0, 0, 0, time.FixedZone("UTC+3", 3*60*60))

	assert.Equal(t, paramsHash("db", p), paramsHash("db", q))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "suggest:run:abc", buildRunKey("abc"))
	assert.True(t, strings.HasPrefix(buildParamsKey("db", domain.DefaultSuggestParams()), "suggest:params:"))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c, err := NewRunCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.SetRun(ctx, &domain.SuggestionRun{ID: "x"}))
	_, ok, err := c.GetRun(ctx, "x")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.InvalidateAll(ctx))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@localhost:6379/1"})
	require.NoError(t, err)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestTTLDefault(t *testing.T) {
	assert.Equal(t, defaultCacheTTL, ttlFromConfig(config.CacheConfig{}))
	assert.Equal(t, 10*time.Second, ttlFromConfig(config.CacheConfig{RunTTLSeconds: 10}))
}
