package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"quota-gateway/quota/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de resultado das operações de cota em hashes.
//
// Chaves (prefix padrão "quota:stats"):
//
//	<prefix>:total            outcome -> n
//	<prefix>:day:<YYYYMMDD>   outcome -> n (expira após ttl)
//	<prefix>:op               <op>:<outcome> -> n
//	<prefix>:key:<key>        outcome -> n (só com trackKeys, expira após ttl)
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série diária / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "day" (padrão) ou "none"

	trackKeys bool
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

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "quota:stats",
		ttl:    7 * 24 * time.Hour,
		bucket: "day",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	outcome := strings.TrimSpace(ev.Outcome)
	if outcome == "" {
		outcome = domain.OutcomeOK
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", outcome, 1)

	if s.bucket == "day" {
		bucketKey := fmt.Sprintf("%s:day:%s", s.prefix, at.UTC().Format("20060102"))
		pipe.HIncrBy(ctx, bucketKey, outcome, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.Op != "" {
		pipe.HIncrBy(ctx, s.prefix+":op", string(ev.Op)+":"+outcome, 1)
	}

	if s.trackKeys {
		k := strings.TrimSpace(string(ev.Key))
		if k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, outcome, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
