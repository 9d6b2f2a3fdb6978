package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"resource-scheduler/resource/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de acesso em hashes do Redis:
//
//	<prefix>:total               status -> n, wait_ms, duration_ms
//	<prefix>:minute:<yyyymmddhhmm> status -> n (expira em ttl)
//	<prefix>:priority            <p>:<status> -> n
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas nos buckets por minuto.
	// total e priority são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "resource:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.AccessEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Status)
	if field == "" {
		field = string(domain.AccessFailed)
	}

	totalKey := s.prefix + ":total"

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)
	pipe.HIncrBy(ctx, totalKey, "wait_ms", ev.Waited.Milliseconds())
	pipe.HIncrBy(ctx, totalKey, "duration_ms", ev.Duration.Milliseconds())

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	pipe.HIncrBy(ctx, s.prefix+":priority", strconv.Itoa(ev.Priority)+":"+field, 1)

	_, err := pipe.Exec(ctx)
	return err
}
