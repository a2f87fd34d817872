package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ats-optimizer/internal/config"
	"ats-optimizer/internal/constants"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, cfg *config.RedisConfig) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedisResultCache(t *testing.T) {
	r, mr := newTestRedis(t, &config.RedisConfig{ResultTTL: "1h"})
	ctx := context.Background()

	_, err := r.GetCachedResult(ctx, "abc")
	assert.True(t, errors.Is(err, ErrNotFound))

	result := &types.AnalysisResult{
		ATSScore:  81,
		Breakdown: types.ScoreBreakdown{KeywordMatch: 70, Total: 81},
		SkillGap:  types.SkillGapReport{MatchedSkills: []string{"go"}, MissingSkills: []string{"aws"}, MatchPercentage: 50},
	}
	require.NoError(t, r.CacheResult(ctx, "abc", result))

	key := fmt.Sprintf(constants.KeyAnalysisResult, "abc")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	got, err := r.GetCachedResult(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, result, got)

	mr.FastForward(2 * time.Hour)
	_, err = r.GetCachedResult(ctx, "abc")
	assert.True(t, errors.Is(err, ErrNotFound), "过期后应未命中")
}

func TestRedisCorruptResult(t *testing.T) {
	r, mr := newTestRedis(t, nil)
	require.NoError(t, mr.Set(fmt.Sprintf(constants.KeyAnalysisResult, "bad"), "{not json"))

	_, err := r.GetCachedResult(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestRedisDefaultTTLs(t *testing.T) {
	r, _ := newTestRedis(t, nil)
	assert.Equal(t, constants.DefaultResultTTL, r.ResultTTL())
	assert.Equal(t, constants.DefaultStatsTTL, r.StatsTTL())

	r, _ = newTestRedis(t, &config.RedisConfig{ResultTTL: "garbage", StatsTTL: "30s"})
	assert.Equal(t, constants.DefaultResultTTL, r.ResultTTL())
	assert.Equal(t, 30*time.Second, r.StatsTTL())
}

func TestRedisAdminTokens(t *testing.T) {
	r, mr := newTestRedis(t, nil)
	ctx := context.Background()

	require.NoError(t, r.SetAdminToken(ctx, "tok", "admin", time.Minute))
	username, err := r.GetAdminToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "admin", username)

	mr.FastForward(2 * time.Minute)
	_, err = r.GetAdminToken(ctx, "tok")
	assert.True(t, errors.Is(err, ErrNotFound), "令牌应过期")

	require.NoError(t, r.SetAdminToken(ctx, "tok2", "admin", time.Minute))
	require.NoError(t, r.DeleteAdminToken(ctx, "tok2"))
	_, err = r.GetAdminToken(ctx, "tok2")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisStatsCache(t *testing.T) {
	r, mr := newTestRedis(t, &config.RedisConfig{StatsTTL: "5m"})
	ctx := context.Background()

	_, err := r.GetStats(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	stats := &models.AnalysisStats{
		TotalResumes: 3,
		AvgATSScore:  66.67,
		Recent:       []models.DailyScore{{Date: "2024-05-01", ATSScore: 70, SkillMatchPercentage: 50}},
	}
	require.NoError(t, r.SetStats(ctx, stats))
	assert.Equal(t, 5*time.Minute, mr.TTL(constants.KeyDashboardStats))

	got, err := r.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	require.NoError(t, r.InvalidateStats(ctx))
	_, err = r.GetStats(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisLock(t *testing.T) {
	r, _ := newTestRedis(t, nil)
	ctx := context.Background()

	value, err := r.AcquireLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, value)

	second, err := r.AcquireLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	assert.Empty(t, second, "锁已被持有")

	released, err := r.ReleaseLock(ctx, "lock:test", "someone-else")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = r.ReleaseLock(ctx, "lock:test", value)
	require.NoError(t, err)
	assert.True(t, released)

	value, err = r.AcquireLock(ctx, "lock:test", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, value)
}

func TestRedisUninitialized(t *testing.T) {
	r := &Redis{config: &config.RedisConfig{}}
	ctx := context.Background()

	assert.Error(t, r.Ping(ctx))
	_, err := r.GetCachedResult(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, r.SetAdminToken(ctx, "t", "u", time.Minute))
	_, err = r.AcquireLock(ctx, "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, r.Close())
}
