package infra

import (
	"context"
	"testing"
	"time"

	"quota-gateway/quota/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsByOutcome(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Op: domain.OpIncrement, Outcome: domain.OutcomeOK}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "a", Op: domain.OpIncrement, Outcome: domain.OutcomeLimitReached}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Op: domain.OpUnlock, Outcome: domain.OutcomeMissingIdentity}))

	assert.Equal(t, Counters{"ok": 1, "limit_reached": 1, "missing_identity": 1}, s.Total())
	assert.Equal(t, Counters{"ok": 1, "limit_reached": 1}, s.ByOp()[domain.OpIncrement])
	// sem identidade não vira chave
	assert.Len(t, s.ByKey(), 1)
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStatsStore(rdb,
		WithStatsPrefix("test:stats:"),
		WithStatsTTL(time.Hour),
		WithStatsTrackKeys(true),
	)

	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "dev-a", Op: domain.OpIncrement, Outcome: domain.OutcomeOK, At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "dev-a", Op: domain.OpIncrement, Outcome: domain.OutcomeOK, At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "dev-a", Op: domain.OpUnlock, Outcome: domain.OutcomeInvalidPassword, At: at}))

	assert.Equal(t, "2", mr.HGet("test:stats:total", "ok"))
	assert.Equal(t, "1", mr.HGet("test:stats:total", "invalid_password"))
	assert.Equal(t, "2", mr.HGet("test:stats:day:20260310", "ok"))
	assert.Equal(t, "1", mr.HGet("test:stats:op", "unlock:invalid_password"))
	assert.Equal(t, "2", mr.HGet("test:stats:key:dev-a", "ok"))

	assert.Equal(t, time.Hour, mr.TTL("test:stats:day:20260310"))
	assert.Equal(t, time.Duration(0), mr.TTL("test:stats:total"))
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{}))
}
