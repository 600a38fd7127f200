// 文件: pkg/nats/subscriber.go
// NATS 消息订阅者

package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/logger"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, subject string, data []byte) error

// ReplyHandler 请求处理函数，返回值作为应答消息体
type ReplyHandler func(ctx context.Context, data []byte) ([]byte, error)

// Subscriber NATS 订阅者
type Subscriber struct {
	conn   *nats.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSubscriber 创建订阅者
func NewSubscriber(url, name string) (*Subscriber, error) {
	conn, err := Connect(url, name)
	if err != nil {
		return nil, err
	}
	return NewSubscriberFromConn(conn), nil
}

// NewSubscriberFromConn 复用已有连接
func NewSubscriberFromConn(conn *nats.Conn) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{conn: conn, ctx: ctx, cancel: cancel}
}

// Subscribe 订阅主题
func (s *Subscriber) Subscribe(handler MessageHandler, subjects ...string) error {
	for _, subject := range subjects {
		_, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
			if err := handler(s.ctx, msg.Subject, msg.Data); err != nil {
				logger.Error(s.ctx, "nats handle failed", slog.String("subject", msg.Subject), slog.Any("error", err))
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
	}
	return nil
}

// SubscribeQueue 队列订阅 (负载均衡)
func (s *Subscriber) SubscribeQueue(subject, queue string, handler MessageHandler) error {
	_, err := s.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if err := handler(s.ctx, msg.Subject, msg.Data); err != nil {
			logger.Error(s.ctx, "nats handle failed", slog.String("subject", msg.Subject), slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", subject, err)
	}
	return nil
}

// SubscribeReply 队列订阅并应答请求。处理失败时应答只带 ErrorHeader。
func (s *Subscriber) SubscribeReply(subject, queue string, handler ReplyHandler) error {
	_, err := s.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if msg.Reply == "" {
			logger.Warn(s.ctx, "nats request without reply subject", slog.String("subject", msg.Subject))
			return
		}

		reply := nats.NewMsg(msg.Reply)
		body, err := handler(s.ctx, msg.Data)
		if err != nil {
			reply.Header.Set(ErrorHeader, err.Error())
		} else {
			reply.Data = body
		}
		if err := msg.RespondMsg(reply); err != nil {
			logger.Error(s.ctx, "nats respond failed", slog.String("subject", msg.Subject), slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("reply subscribe %s: %w", subject, err)
	}
	return nil
}

// Close 停止接收新消息，处理完已收到的消息后关闭连接
func (s *Subscriber) Close() error {
	err := s.conn.Drain()
	s.cancel()
	return err
}

// =============================================================================
// 便捷方法
// =============================================================================

// UnmarshalJSON 反序列化 JSON
func UnmarshalJSON[T any](data []byte) (*T, error) {
	var v T
	if err := sonnet.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
