package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "clover"

	// DefaultDiagnosticsLimit is how many gateway diagnostics are kept per tenant.
	DefaultDiagnosticsLimit = 200
	// DefaultDiagnosticsTTL expires a tenant's diagnostics log after inactivity.
	DefaultDiagnosticsTTL = 7 * 24 * time.Hour
)

// DetectionCache stores detection results per tenant and parameter set.
//
// Entries are keyed under a per-tenant generation number. Invalidate bumps the
// generation, orphaning every older entry until its TTL expires. Get hands back the
// generation it read and Set writes under that generation, so a result computed while an
// invalidation lands is orphaned along with the rest.
type DetectionCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

func NewDetectionCache(client *Client, ttl time.Duration, logger ectologger.Logger) *DetectionCache {
	return &DetectionCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func generationKey(tenantID string) string {
	return fmt.Sprintf("%s:detect:gen:%s", keyPrefix, tenantID)
}

func resultKey(tenantID string, generation int64, params string) string {
	return fmt.Sprintf("%s:detect:%s:%s:%s", keyPrefix, tenantID, strconv.FormatInt(generation, 10), params)
}

func (c *DetectionCache) generation(ctx context.Context, tenantID string) (int64, error) {
	gen, err := c.client.rdb.Get(ctx, generationKey(tenantID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return gen, nil
}

// Get returns the cached result, or nil on a miss, along with the tenant generation the
// lookup ran against. Pass that generation to Set when storing a freshly computed result.
func (c *DetectionCache) Get(ctx context.Context, tenantID, params string) (*models.DetectionResult, int64, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DetectionCache.Get")
	defer span.End()

	gen, err := c.generation(ctx, tenantID)
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, 0, err
	}

	data, err := c.client.rdb.Get(ctx, resultKey(tenantID, gen, params)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, gen, nil
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, 0, err
	}

	var result models.DetectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		// a stale or corrupt entry behaves like a miss
		c.logger.WithContext(ctx).WithError(err).Warn("Discarding unreadable detection cache entry")
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, gen, nil
	}
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return &result, gen, nil
}

// Set stores result under generation. A result for a generation that Invalidate has
// already moved past is never served.
func (c *DetectionCache) Set(ctx context.Context, tenantID, params string, generation int64, result *models.DetectionResult) error {
	ctx, span := tracing.StartSpan(ctx, "redis.DetectionCache.Set")
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal detection result: %w", err)
	}
	return c.client.rdb.Set(ctx, resultKey(tenantID, generation, params), data, c.ttl).Err()
}

// Invalidate drops every cached result of the tenant.
func (c *DetectionCache) Invalidate(ctx context.Context, tenantID string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.DetectionCache.Invalidate")
	defer span.End()

	return c.client.rdb.Incr(ctx, generationKey(tenantID)).Err()
}

// DiagnosticsLog keeps the most recent gateway diagnostics of each tenant in a capped list.
type DiagnosticsLog struct {
	client *Client
	limit  int64
	ttl    time.Duration
	logger ectologger.Logger
}

func NewDiagnosticsLog(client *Client, limit int, ttl time.Duration, logger ectologger.Logger) *DiagnosticsLog {
	if limit <= 0 {
		limit = DefaultDiagnosticsLimit
	}
	if ttl <= 0 {
		ttl = DefaultDiagnosticsTTL
	}
	return &DiagnosticsLog{
		client: client,
		limit:  int64(limit),
		ttl:    ttl,
		logger: logger,
	}
}

func diagnosticsKey(tenantID string) string {
	return fmt.Sprintf("%s:diagnostics:%s", keyPrefix, tenantID)
}

// Append adds diagnostics in order and trims the list to the newest entries.
func (l *DiagnosticsLog) Append(ctx context.Context, tenantID string, diagnostics []models.Diagnostic) error {
	ctx, span := tracing.StartSpan(ctx, "redis.DiagnosticsLog.Append")
	defer span.End()

	if len(diagnostics) == 0 {
		return nil
	}

	values := make([]any, 0, len(diagnostics))
	for _, d := range diagnostics {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to marshal diagnostic: %w", err)
		}
		values = append(values, data)
	}

	key := diagnosticsKey(tenantID)
	pipe := l.client.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, -l.limit, -1)
	pipe.Expire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append diagnostics: %w", err)
	}
	return nil
}

// List returns up to limit of the newest diagnostics, oldest first. limit <= 0 returns all.
func (l *DiagnosticsLog) List(ctx context.Context, tenantID string, limit int) ([]models.Diagnostic, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.DiagnosticsLog.List")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := l.client.rdb.LRange(ctx, diagnosticsKey(tenantID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read diagnostics: %w", err)
	}

	out := make([]models.Diagnostic, 0, len(raw))
	for _, item := range raw {
		var d models.Diagnostic
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			l.logger.WithContext(ctx).WithError(err).Warn("Skipping unreadable diagnostic entry")
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
