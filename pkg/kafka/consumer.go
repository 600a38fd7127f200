// 文件: pkg/kafka/consumer.go
// Kafka 消费者组
//
// 特点:
// - 消费者组支持，同组内多个 worker 分摊分区
// - 处理失败只记录日志，继续下一条
// - 优雅关闭

package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"hestonq.com/pkg/logger"
)

// =============================================================================
// Consumer 配置
// =============================================================================

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Brokers       []string // Kafka broker 地址列表
	GroupID       string   // 消费者组 ID
	Topics        []string // 订阅的 topics
	OffsetInitial int64    // 初始 offset: -1=newest, -2=oldest
	AutoCommit    bool     // 是否自动提交 offset
}

// DefaultConsumerConfig 默认配置
func DefaultConsumerConfig(brokers []string, groupID string, topics []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		GroupID:       groupID,
		Topics:        topics,
		OffsetInitial: sarama.OffsetNewest,
		AutoCommit:    true,
	}
}

// =============================================================================
// Record / Handler
// =============================================================================

// Record 一条消费到的消息
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler 消息处理函数，ctx 在会话结束（重平衡或关闭）时取消
type Handler func(ctx context.Context, rec Record) error

// =============================================================================
// Consumer 消费者
// =============================================================================

// Consumer Kafka 消费者组封装
type Consumer struct {
	client  sarama.ConsumerGroup
	topics  []string
	handler Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(cfg ConsumerConfig, handler Handler) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = cfg.OffsetInitial
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.AutoCommit
	sc.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		client:  client,
		topics:  cfg.Topics,
		handler: handler,
	}, nil
}

// Start 启动消费循环，ctx 取消或调用 Stop 后退出
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		h := &groupHandler{handler: c.handler}
		for {
			// 重平衡后 Consume 返回，需要重新加入消费者组
			if err := c.client.Consume(ctx, c.topics, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				logger.Error(ctx, "kafka consume failed", slog.Any("error", err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.client.Errors():
				if !ok {
					return
				}
				logger.Warn(ctx, "kafka consumer group error", slog.Any("error", err))
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止消费并关闭消费者组
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.client.Close()
}

// =============================================================================
// Sarama ConsumerGroupHandler 实现
// =============================================================================

type groupHandler struct {
	handler Handler
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			rec := Record{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Value:     msg.Value,
			}
			if err := h.handler(ctx, rec); err != nil {
				logger.Error(ctx, "kafka handle failed",
					slog.String("topic", msg.Topic),
					slog.Int64("offset", msg.Offset),
					slog.Any("error", err))
			}
			// 失败的消息也标记，避免一条坏消息卡住整个分区
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}
