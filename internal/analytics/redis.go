// Package analytics ships per-template outcome counters to Redis for
// dashboards. Writes are best effort; the run never fails on a missing
// or slow Redis.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PatrykGolebiowski/ServiceNowScheduler/internal/domain"
)

// DefaultRetention keeps counters for 30 days unless configured otherwise.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisSink{client: client, retention: retention}
}

// Record bumps the day-bucketed counter for one template outcome.
func (s *RedisSink) Record(ctx context.Context, template string, outcome domain.Outcome, date time.Time) error {
	key := buildKey(template, outcome, date)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// buildKey buckets counters per calendar day; the tool runs at day
// granularity so finer windows would never collect more than one hit.
func buildKey(template string, outcome domain.Outcome, date time.Time) string {
	return fmt.Sprintf("snsched:%s:%s:%s", template, outcome, date.UTC().Format("20060102"))
}
