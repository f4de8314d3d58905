package reporting

import (
	"context"
	"encoding/json"
	"fmt"

	"mock-interview-go/internal/types"

	"github.com/rs/zerolog"
)

// Subscriber 队列消费方，生产环境为 RabbitMQ
type Subscriber interface {
	StartConsumer(ctx context.Context, queueName string, prefetchCount int, handler func(context.Context, []byte) bool) (<-chan struct{}, error)
}

// ScoreBoard 排行榜写入
type ScoreBoard interface {
	RecordFinalScore(ctx context.Context, candidateID string, score float64) error
}

// Consumer 消费面试结束事件，维护排行榜
type Consumer struct {
	sub      Subscriber
	board    ScoreBoard
	queue    string
	prefetch int
	log      zerolog.Logger
}

// NewConsumer 创建消费者
func NewConsumer(sub Subscriber, board ScoreBoard, queue string, prefetch int, log zerolog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 10
	}
	return &Consumer{sub: sub, board: board, queue: queue, prefetch: prefetch, log: log}
}

// Start 开始消费，返回的通道在消费者退出后关闭
func (c *Consumer) Start(ctx context.Context) (<-chan struct{}, error) {
	done, err := c.sub.StartConsumer(ctx, c.queue, c.prefetch, c.Handle)
	if err != nil {
		return nil, fmt.Errorf("启动报表消费者失败: %w", err)
	}
	return done, nil
}

// Handle 处理单条事件。格式错误的消息直接确认丢弃，写入失败时重新入队
func (c *Consumer) Handle(ctx context.Context, body []byte) bool {
	var event types.InterviewFinishedEvent
	if err := json.Unmarshal(body, &event); err != nil || event.CandidateID == "" {
		c.log.Error().Err(err).Bytes("body", body).Msg("无法解析面试结束事件，丢弃")
		return true
	}
	if err := c.board.RecordFinalScore(ctx, event.CandidateID, event.TotalScore); err != nil {
		c.log.Error().Err(err).Str("candidate_id", event.CandidateID).Msg("写入排行榜失败")
		return false
	}
	c.log.Info().
		Str("candidate_id", event.CandidateID).
		Float64("score", event.TotalScore).
		Bool("terminated", event.Terminated).
		Msg("面试结果已计入排行榜")
	return true
}
