package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ats-optimizer/internal/config"
	"ats-optimizer/internal/constants"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/tracing"
	"ats-optimizer/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("ats-optimizer/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries: cfg.MaxRetries,
	}

	r, err := NewRedisWithClient(redis.NewClient(opt), cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}
	return r, nil
}

// NewRedisWithClient 包装已有的客户端并添加OpenTelemetry钩子
func NewRedisWithClient(client *redis.Client, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		cfg = &config.RedisConfig{}
	}
	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}
	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// ResultTTL 返回配置的分析结果缓存有效期
func (r *Redis) ResultTTL() time.Duration {
	return config.GetDuration(r.config.ResultTTL, constants.DefaultResultTTL)
}

// StatsTTL 返回配置的看板统计缓存有效期
func (r *Redis) StatsTTL() time.Duration {
	return config.GetDuration(r.config.StatsTTL, constants.DefaultStatsTTL)
}

// GetCachedResult 按文本MD5读取缓存的分析结果，未命中返回 ErrNotFound
func (r *Redis) GetCachedResult(ctx context.Context, textMD5 string) (*types.AnalysisResult, error) {
	key := fmt.Sprintf(constants.KeyAnalysisResult, textMD5)
	ctx, span := r.startSpan(ctx, "Redis.GetCachedResult", "GET", key)
	defer span.End()

	if r.Client == nil {
		err := fmt.Errorf("redis client is not initialized")
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, err
	}

	val, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrNotFound
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, err
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(val, &result); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return nil, fmt.Errorf("反序列化分析结果失败: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &result, nil
}

// CacheResult 缓存分析结果
func (r *Redis) CacheResult(ctx context.Context, textMD5 string, result *types.AnalysisResult) error {
	key := fmt.Sprintf(constants.KeyAnalysisResult, textMD5)
	ctx, span := r.startSpan(ctx, "Redis.CacheResult", "SET", key)
	defer span.End()

	if r.Client == nil {
		err := fmt.Errorf("redis client is not initialized")
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化分析结果失败: %w", err)
	}
	if err := r.Client.Set(ctx, key, data, r.ResultTTL()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return err
	}
	return nil
}

// SetAdminToken 保存管理员登录令牌
func (r *Redis) SetAdminToken(ctx context.Context, token, username string, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Set(ctx, fmt.Sprintf(constants.KeyAdminToken, token), username, ttl).Err()
}

// GetAdminToken 返回令牌对应的用户名，令牌不存在或已过期返回 ErrNotFound
func (r *Redis) GetAdminToken(ctx context.Context, token string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Get(ctx, fmt.Sprintf(constants.KeyAdminToken, token)).Result()
}

// DeleteAdminToken 注销令牌
func (r *Redis) DeleteAdminToken(ctx context.Context, token string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, fmt.Sprintf(constants.KeyAdminToken, token)).Err()
}

// GetStats 读取缓存的看板统计，未命中返回 ErrNotFound
func (r *Redis) GetStats(ctx context.Context) (*models.AnalysisStats, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	val, err := r.Client.Get(ctx, constants.KeyDashboardStats).Bytes()
	if err != nil {
		return nil, err
	}
	var stats models.AnalysisStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return nil, fmt.Errorf("反序列化看板统计失败: %w", err)
	}
	return &stats, nil
}

// SetStats 缓存看板统计
func (r *Redis) SetStats(ctx context.Context, stats *models.AnalysisStats) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("序列化看板统计失败: %w", err)
	}
	return r.Client.Set(ctx, constants.KeyDashboardStats, data, r.StatsTTL()).Err()
}

// InvalidateStats 删除看板统计缓存，新的分析完成后调用
func (r *Redis) InvalidateStats(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, constants.KeyDashboardStats).Err()
}

// AcquireLock 尝试获取一个分布式锁
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	// 生成一个随机值作为锁的持有者标识
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	// 尝试设置一个带过期时间的key，NX保证了原子性
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	// 未能获取锁
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	// Lua脚本: 如果key存在且值匹配，则删除key
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}
	// 锁不存在或不属于当前持有者
	return false, nil
}

func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	ctx, span := redisTracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", operation),
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
	)
	return ctx, span
}
