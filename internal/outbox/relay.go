package outbox

import (
	"context"
	"sync"
	"time"

	"mock-interview-go/internal/constants"
	"mock-interview-go/internal/metrics"
	"mock-interview-go/internal/storage/models"
	"mock-interview-go/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 消息发布方，生产环境为 RabbitMQ
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// MessageRelay 轮询 outbox 表，把面试结束事件发布到消息队列
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	tracer          trace.Tracer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
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

// WithBatchSize 设置单批数量
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger,
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		tracer:          otel.Tracer("mock-interview-go/outbox"),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("MessageRelay stopped")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("处理待发布消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

// ProcessPending 取一批 PENDING 消息并发布，返回本批条数。
// FOR UPDATE SKIP LOCKED 让多个实例可以并行消费不同的行
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constants.OutboxStatusPending).
		Order("created_at asc").
		Order("id asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}
	// 空轮询不建 span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		if err != nil {
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			result := "retry"
			if msg.RetryCount >= maxRetryCount {
				msg.Status = constants.OutboxStatusFailed
				result = "failed"
			}
			metrics.OutboxPublished.WithLabelValues(result).Inc()
			r.logger.Warn().Err(err).
				Uint64("id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount).
				Msg("发布 outbox 消息失败")
		} else {
			now := time.Now()
			msg.Status = constants.OutboxStatusSent
			msg.ProcessedAt = &now
			msg.ErrorMessage = ""
			metrics.OutboxPublished.WithLabelValues("sent").Inc()
		}

		if err := tx.Save(msg).Error; err != nil {
			// 整批回滚，下一轮重新拾取
			tracing.RecordError(span, err, tracing.ErrorTypeDatabase)
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	r.logger.Debug().Int("count", len(messages)).Msg("outbox 批次处理完成")
	return len(messages), nil
}

// CleanupSent 删除早于 before 的已发送消息
func (r *MessageRelay) CleanupSent(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", constants.OutboxStatusSent, before).
		Delete(&models.OutboxMessage{})
	return res.RowsAffected, res.Error
}
