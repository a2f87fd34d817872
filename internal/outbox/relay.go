package outbox // 定义了发件箱模式（Outbox Pattern）的实现

import (
	"context"
	"time"

	"ats-optimizer/internal/logger"
	"ats-optimizer/internal/storage/models"
	"ats-optimizer/internal/tracing"
	"ats-optimizer/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second // 默认轮询数据库中 outbox 表的间隔
	defaultBatchSize       = 10              // 每次轮询处理的消息批量大小
	defaultMaxRetryCount   = 5               // 消息发布失败的最大重试次数
)

// Publisher 消息发布器，由 storage.RabbitMQ 实现
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// Option 配置 MessageRelay
type Option func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置批量大小
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxRetries 设置最大重试次数，超过后消息标记为 FAILED
func WithMaxRetries(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// MessageRelay 轮询 outbox 表并将消息发布到消息代理。
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	pollingInterval time.Duration
	batchSize       int
	maxRetries      int
	done            chan struct{} // 关闭后后台goroutine退出
	stopped         chan struct{} // 后台goroutine退出后关闭
	tracer          trace.Tracer
}

// NewMessageRelay 创建一个新的 MessageRelay 实例。
func NewMessageRelay(db *gorm.DB, publisher Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetryCount,
		done:            make(chan struct{}),
		stopped:         make(chan struct{}),
		tracer:          otel.Tracer("ats-optimizer/outbox-relay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 开始消息中继的轮询过程。
func (r *MessageRelay) Start(ctx context.Context) {
	logger.Info().
		Dur("interval", r.pollingInterval).
		Int("batch_size", r.batchSize).
		Msg("MessageRelay starting...")
	ticker := time.NewTicker(r.pollingInterval)

	go func() {
		defer close(r.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				logger.Info().Msg("MessageRelay stopped.")
				return
			case <-ctx.Done():
				logger.Info().Msg("MessageRelay stopped.")
				return
			case <-ticker.C:
				if _, err := r.ProcessPendingMessages(ctx); err != nil {
					logger.Error().Err(err).Msg("Error processing pending messages")
				}
			}
		}
	}()
}

// Stop 优雅地停止消息中继服务，等待当前批次处理结束。
func (r *MessageRelay) Stop() {
	logger.Info().Msg("MessageRelay stopping...")
	close(r.done)
	<-r.stopped
}

// ProcessPendingMessages 获取并处理一批待处理消息，返回本批处理的条数。
func (r *MessageRelay) ProcessPendingMessages(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	// 空轮询不创建Span
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	// `FOR UPDATE SKIP LOCKED` 跳过已被其他实例锁定的行
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch pending outbox messages")
		return 0, err
	}

	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(
			attribute.Int("messaging.batch.message_count", len(messages)),
		),
	)
	defer span.End()

	logger.Debug().Int("count", len(messages)).Msg("Fetched pending outbox messages")

	for _, msg := range messages {
		updates := map[string]interface{}{}

		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			retries := msg.RetryCount + 1
			logger.Warn().
				Err(err).
				Uint64("message_id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", retries).
				Msg("Failed to publish outbox message")
			updates["retry_count"] = retries
			updates["error_message"] = err.Error()
			if retries >= r.maxRetries {
				updates["status"] = models.OutboxStatusFailed
				tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeRabbitMQ,
					attribute.String("outbox.aggregate_id", msg.AggregateID))
			}
		} else {
			updates["status"] = models.OutboxStatusSent
			updates["processed_at"] = utils.TimePtr(time.Now())
			updates["error_message"] = ""
		}

		// 更新失败时整个事务回滚，消息在下一次轮询中被重新拾取
		if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", msg.ID).Updates(updates).Error; err != nil {
			logger.Error().Err(err).Uint64("message_id", msg.ID).Msg("Failed to update outbox message")
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return 0, err
		}
	}

	return len(messages), tx.Commit().Error
}
