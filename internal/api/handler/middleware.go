package handler

import (
	"context"
	"math"
	"strconv"
	"time"

	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/service"
	"ats-optimizer/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

const (
	// HeaderRequestID 请求ID头，客户端未提供时生成
	HeaderRequestID = "X-Request-ID"
	// ContextKeyToken 鉴权通过后保存的令牌
	ContextKeyToken = "admin_token"
	// ContextKeyAdmin 鉴权通过后保存的管理员用户名
	ContextKeyAdmin = "admin_username"
)

// RequestID 为每个请求附加请求ID，并写入日志上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

// AccessLog 记录请求方法、路径、状态码和耗时
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		logger.Ctx(ctx).Info().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", c.Response.StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("请求完成")
	}
}

// AdminAuth 校验 Authorization: Bearer <token>
func AdminAuth(admins *service.AdminService) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithContextKey(ContextKeyToken),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, token string) (bool, error) {
			username, err := admins.ValidateToken(ctx, token)
			if err != nil {
				return false, err
			}
			c.Set(ContextKeyAdmin, username)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			if err != nil && err != keyauth.ErrMissingOrMalformedAPIKey && statusFor(err) != consts.StatusUnauthorized {
				logger.Ctx(ctx).Error().Err(err).Msg("校验管理员令牌失败")
			}
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权访问"})
		}),
	)
}

// RateLimit 令牌不足时返回 429 和 Retry-After
func RateLimit(bucket *ratelimit.TokenBucket) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if bucket.Allow() {
			c.Next(ctx)
			return
		}
		wait := bucket.RetryAfter()
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		logger.Ctx(ctx).Warn().Str("path", string(c.Path())).Dur("retry_after", wait).Msg("请求被限流")
		c.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": ratelimit.ErrLimited.Error()})
	}
}
