package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/kafka"
	"hestonq.com/pkg/risk"
)

// SimulationCompleted 模拟完成事件，不带路径和终值分布，只有摘要
type SimulationCompleted struct {
	RunID         string          `json:"runId"`
	RequestID     string          `json:"requestId,omitempty"`
	OptionType    risk.OptionKind `json:"optionType"`
	NumPaths      int             `json:"numPaths"`
	TimeSteps     int             `json:"timeSteps"`
	Price         float64         `json:"price"`
	StandardError float64         `json:"standardError"`
	ExecutionTime float64         `json:"executionTime"`
	Seed          uint64          `json:"seed"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// NewSimulationCompleted 从请求和结果构造事件
func NewSimulationCompleted(req SimulationRequest, r *SimulationReport) SimulationCompleted {
	return SimulationCompleted{
		RunID:         r.RunID,
		RequestID:     req.RequestID,
		OptionType:    req.Params.OptionType,
		NumPaths:      req.Params.NumPaths,
		TimeSteps:     req.Params.TimeSteps,
		Price:         r.Price,
		StandardError: r.StandardError,
		ExecutionTime: r.ExecutionTime,
		Seed:          r.Seed,
		CompletedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// NATS
// =============================================================================

// SubjectPublisher 满足 pkg/nats.Publisher
type SubjectPublisher interface {
	Publish(subject string, data any) error
}

// NATSEventPublisher 把完成事件发到 NATS subject
type NATSEventPublisher struct {
	pub     SubjectPublisher
	subject string
}

// NewNATSEventPublisher 创建 NATS 事件发布者
func NewNATSEventPublisher(pub SubjectPublisher, subject string) *NATSEventPublisher {
	return &NATSEventPublisher{pub: pub, subject: subject}
}

// PublishSimulationCompleted 实现 EventPublisher
func (p *NATSEventPublisher) PublishSimulationCompleted(_ context.Context, evt SimulationCompleted) error {
	return p.pub.Publish(p.subject, evt)
}

// =============================================================================
// Kafka
// =============================================================================

// MessageSender 满足 pkg/kafka.Producer
type MessageSender interface {
	Send(ctx context.Context, msg kafka.Message) error
}

// KafkaEventPublisher 把完成事件发到 Kafka topic，key 为 runId
type KafkaEventPublisher struct {
	sender MessageSender
	topic  string
}

// NewKafkaEventPublisher 创建 Kafka 事件发布者
func NewKafkaEventPublisher(sender MessageSender, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{sender: sender, topic: topic}
}

// PublishSimulationCompleted 实现 EventPublisher
func (p *KafkaEventPublisher) PublishSimulationCompleted(ctx context.Context, evt SimulationCompleted) error {
	return p.sender.Send(ctx, completedMessage{topic: p.topic, evt: evt})
}

type completedMessage struct {
	topic string
	evt   SimulationCompleted
}

func (m completedMessage) Topic() string          { return m.topic }
func (m completedMessage) Key() string            { return m.evt.RunID }
func (m completedMessage) Value() ([]byte, error) { return sonnet.Marshal(m.evt) }

// =============================================================================
// 组合
// =============================================================================

// MultiPublisher 依次发给所有发布者，错误合并返回
type MultiPublisher []EventPublisher

// PublishSimulationCompleted 实现 EventPublisher
func (m MultiPublisher) PublishSimulationCompleted(ctx context.Context, evt SimulationCompleted) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSimulationCompleted(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
