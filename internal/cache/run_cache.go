package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-suggest/internal/config"
	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix    = "suggest:run"
	paramsKeyPrefix = "suggest:params"
	keyPrefix       = "suggest:"
)

// RunCache keeps completed suggestion runs, by id and by the parameters that
// produced them.
type RunCache interface {
	GetRun(ctx context.Context, id string) (*domain.SuggestionRun, bool, error)
	GetByParams(ctx context.Context, source string, params domain.SuggestParams) (*domain.SuggestionRun, bool, error)
	SetRun(ctx context.Context, run *domain.SuggestionRun) error
	InvalidateAll(ctx context.Context) error
}

type redisRunCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRunCache struct{}

func NewRunCache(cfg config.CacheConfig) (RunCache, error) {
	if !cfg.Enabled {
		return &noopRunCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisRunCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopRunCache() RunCache {
	return &noopRunCache{}
}

func (c *redisRunCache) GetRun(ctx context.Context, id string) (*domain.SuggestionRun, bool, error) {
	return c.get(ctx, buildRunKey(id))
}

func (c *redisRunCache) GetByParams(ctx context.Context, source string, params domain.SuggestParams) (*domain.SuggestionRun, bool, error) {
	id, err := c.client.Get(ctx, buildParamsKey(source, params)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return c.GetRun(ctx, id)
}

func (c *redisRunCache) get(ctx context.Context, key string) (*domain.SuggestionRun, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var run domain.SuggestionRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, false, fmt.Errorf("decode suggestion run cache: %w", err)
	}
	return &run, true, nil
}

func (c *redisRunCache) SetRun(ctx context.Context, run *domain.SuggestionRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode suggestion run cache: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, buildRunKey(run.ID), payload, c.ttl)
	pipe.Set(ctx, buildParamsKey(run.SourceKey(), run.Params), run.ID, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRunCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, keyPrefix, scanBatchSize)
}

func (n *noopRunCache) GetRun(ctx context.Context, id string) (*domain.SuggestionRun, bool, error) {
	return nil, false, nil
}

func (n *noopRunCache) GetByParams(ctx context.Context, source string, params domain.SuggestParams) (*domain.SuggestionRun, bool, error) {
	return nil, false, nil
}

func (n *noopRunCache) SetRun(ctx context.Context, run *domain.SuggestionRun) error {
	return nil
}

func (n *noopRunCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildRunKey(id string) string {
	return fmt.Sprintf("%s:%s", runKeyPrefix, id)
}

func buildParamsKey(source string, params domain.SuggestParams) string {
	return fmt.Sprintf("%s:%s", paramsKeyPrefix, paramsHash(source, params))
}

// paramsHash identifies a run request. source is a domain.SourceKey, so runs
// over different directories, prefixes or folders never share an entry. The
// reference time only counts by its UTC calendar date.
func paramsHash(source string, p domain.SuggestParams) string {
	parts := []string{
		"source=" + strings.TrimSpace(source),
		fmt.Sprintf("forecast_period_days=%d", p.ForecastPeriodDays),
		fmt.Sprintf("safety_days=%d", p.SafetyDays),
		"forecast_method=" + strings.ToLower(string(p.ForecastMethod)),
		fmt.Sprintf("forecast_window=%d", p.ForecastWindow),
		fmt.Sprintf("lookback_days=%d", p.LookbackDays),
		fmt.Sprintf("total_units_threshold=%.4f", p.TotalUnitsThreshold),
		fmt.Sprintf("safety_recency_days=%d", p.SafetyRecencyDays),
		fmt.Sprintf("supplier_recency_days=%d", p.SupplierRecencyDays),
		"reference_date=" + p.ReferenceTime.UTC().Format("2006-01-02"),
	}

	sort.Strings(parts)
	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
