// 文件: pkg/nats/publisher.go
// NATS 消息发布者
// 发布模拟完成事件；也作为请求方，把模拟请求发给 worker 并等待应答

package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/logger"
)

// ErrorHeader 应答失败时错误信息放在这个 header 里，消息体为空
const ErrorHeader = "Heston-Error"

// RemoteError worker 端处理失败
type RemoteError struct {
	Subject string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Subject, e.Message)
}

// Connect 建立连接，断线后无限重连
func Connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Get().Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Get().Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}

// Publisher NATS 发布者
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher 创建发布者
func NewPublisher(url, name string) (*Publisher, error) {
	conn, err := Connect(url, name)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// NewPublisherFromConn 复用已有连接
func NewPublisherFromConn(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Publish 以 JSON 发布消息
func (p *Publisher) Publish(subject string, data any) error {
	bytes, err := sonnet.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	return p.conn.Publish(subject, bytes)
}

// PublishRaw 发布原始消息
func (p *Publisher) PublishRaw(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Request 发送请求并把应答解码到 resp；对端返回错误时得到 *RemoteError
func (p *Publisher) Request(ctx context.Context, subject string, req, resp any) error {
	body, err := sonnet.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}

	msg, err := p.conn.RequestWithContext(ctx, subject, body)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return fmt.Errorf("no worker listening on %s: %w", subject, err)
		}
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if msg.Header != nil {
		if remote := msg.Header.Get(ErrorHeader); remote != "" {
			return &RemoteError{Subject: subject, Message: remote}
		}
	}
	if err := sonnet.Unmarshal(msg.Data, resp); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	return nil
}

// Flush 等待已发布的消息发到服务端
func (p *Publisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

// Close 关闭连接
func (p *Publisher) Close() {
	p.conn.Close()
}
