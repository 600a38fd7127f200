// Package app 按配置组装定价服务及其外部依赖，server 和 worker 两个进程共用
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hestonq.com/pkg/cache"
	"hestonq.com/pkg/config"
	"hestonq.com/pkg/idgen"
	"hestonq.com/pkg/kafka"
	"hestonq.com/pkg/logger"
	"hestonq.com/pkg/metrics"
	natsx "hestonq.com/pkg/nats"
	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/risk/heston"
)

const pingTimeout = 3 * time.Second

// App 组装好的服务和需要关闭的资源
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics
	Service *pricing.Service

	// 未启用时为空
	NATS  *natsx.Publisher
	Kafka *kafka.Producer

	closers []func() error
}

// New 按配置创建服务。Redis 不可用只告警，NATS / Kafka 启用后连接失败直接返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	ids, err := idgen.New(cfg.Snowflake.NodeID)
	if err != nil {
		return nil, err
	}

	opts := []pricing.Option{
		pricing.WithRecorder(a.Metrics),
		pricing.WithIDGenerator(ids),
		pricing.WithLimits(pricing.Limits{
			MaxPaths:      cfg.Simulation.MaxPaths,
			MaxTimeSteps:  cfg.Simulation.MaxTimeSteps,
			MaxTotalSteps: cfg.Simulation.MaxTotalSteps,
		}),
		pricing.WithTimeout(cfg.Simulation.Timeout),
		pricing.WithSimulatorOptions(SimulatorOptions(cfg.Simulation)...),
	}

	if cfg.Redis.Enabled {
		rc := cache.NewRedisCache(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := rc.Ping(pctx); err != nil {
			logger.Warn(ctx, "redis unavailable, cache lookups will miss",
				slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
		}
		cancel()
		a.closers = append(a.closers, rc.Close)
		opts = append(opts, pricing.WithCache(rc))
	}

	var publishers pricing.MultiPublisher

	if cfg.NATS.Enabled {
		pub, err := natsx.NewPublisher(cfg.NATS.URL, cfg.ServiceName)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		a.NATS = pub
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
		publishers = append(publishers, pricing.NewNATSEventPublisher(pub, cfg.NATS.CompletedSubject))
	}

	if cfg.Kafka.Enabled {
		pcfg := kafka.DefaultProducerConfig(cfg.Kafka.Brokers)
		pcfg.ClientID = cfg.ServiceName
		pcfg.RequiredAcks = cfg.Kafka.RequiredAcks
		pcfg.Compression = cfg.Kafka.Compression
		prod, err := kafka.NewProducer(pcfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		a.Kafka = prod
		a.closers = append(a.closers, prod.Close)
		publishers = append(publishers, pricing.NewKafkaEventPublisher(prod, cfg.Kafka.CompletedTopic))
	}

	if len(publishers) > 0 {
		opts = append(opts, pricing.WithPublisher(publishers))
	}

	a.Service = pricing.NewService(opts...)
	return a, nil
}

// SimulatorOptions 配置里为 0 的项使用模拟器默认值
func SimulatorOptions(cfg config.SimulationConfig) []heston.Option {
	var opts []heston.Option
	if cfg.Workers > 0 {
		opts = append(opts, heston.WithWorkers(cfg.Workers))
	}
	if cfg.BlockSize > 0 {
		opts = append(opts, heston.WithBlockSize(cfg.BlockSize))
	}
	if cfg.VisualizedPaths > 0 {
		opts = append(opts, heston.WithVisualizedPaths(cfg.VisualizedPaths))
	}
	return opts
}

// Close 按创建的逆序关闭资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
