// Package pricing 把路径模拟、Greeks、量子资源估算三个纯计算组件组织成一个服务：
// 限额检查、超时、运行 ID、结果缓存、完成事件和指标都在这一层处理。
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hestonq.com/pkg/logger"
	"hestonq.com/pkg/metrics"
	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/heston"
	"hestonq.com/pkg/risk/options"
)

// ErrLimitExceeded 请求规模超过服务限额
var ErrLimitExceeded = errors.New("simulation limit exceeded")

// =============================================================================
// 依赖接口
// =============================================================================

// Cache 结果缓存，miss 时返回 (false, nil)
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// EventPublisher 发布模拟完成事件
type EventPublisher interface {
	PublishSimulationCompleted(ctx context.Context, evt SimulationCompleted) error
}

// Recorder 指标记录
type Recorder interface {
	ObserveSimulation(optionType string, paths int, elapsed time.Duration)
	ObserveResourceEstimate()
	ObserveCache(result string)
}

// IDGenerator 运行 ID
type IDGenerator interface {
	NextID() string
}

// Pricer 对外暴露的四个操作，HTTP 和 gRPC 两个接入层都依赖它
type Pricer interface {
	Simulate(ctx context.Context, req SimulationRequest) (*SimulationReport, error)
	Sensitivities(ctx context.Context, p risk.ModelParameters) (options.SensitivityBundle, error)
	EstimateResources(ctx context.Context, p risk.ModelParameters) (quantum.ResourceEstimate, error)
	TermStructure(ctx context.Context, p risk.ModelParameters) ([]options.TermPoint, error)
}

var _ Pricer = (*Service)(nil)

// =============================================================================
// 配置
// =============================================================================

// Limits 单次请求的规模上限，0 表示不限制
type Limits struct {
	MaxPaths      int
	MaxTimeSteps  int
	MaxTotalSteps int64
}

func (l Limits) check(p risk.ModelParameters) error {
	if l.MaxPaths > 0 && p.NumPaths > l.MaxPaths {
		return fmt.Errorf("%w: numPaths %d > %d", ErrLimitExceeded, p.NumPaths, l.MaxPaths)
	}
	if l.MaxTimeSteps > 0 && p.TimeSteps > l.MaxTimeSteps {
		return fmt.Errorf("%w: timeSteps %d > %d", ErrLimitExceeded, p.TimeSteps, l.MaxTimeSteps)
	}
	if total := int64(p.NumPaths) * int64(p.TimeSteps); l.MaxTotalSteps > 0 && total > l.MaxTotalSteps {
		return fmt.Errorf("%w: numPaths*timeSteps %d > %d", ErrLimitExceeded, total, l.MaxTotalSteps)
	}
	return nil
}

// Option 服务选项
type Option func(*Service)

// WithCache 启用结果缓存
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithPublisher 启用完成事件
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithRecorder 启用指标
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// WithIDGenerator 指定运行 ID 生成器，默认用 UUID
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.ids = g } }

// WithLimits 设置规模上限
func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// WithTimeout 单次模拟超时，0 表示只受调用方 ctx 控制
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithSimulatorOptions 透传给模拟器的选项（并发数、块大小、可视化路径数）
func WithSimulatorOptions(opts ...heston.Option) Option {
	return func(s *Service) { s.simOpts = append(s.simOpts, opts...) }
}

// =============================================================================
// Service
// =============================================================================

// Service 定价服务，可并发使用
type Service struct {
	cache     Cache
	publisher EventPublisher
	recorder  Recorder
	ids       IDGenerator
	limits    Limits
	timeout   time.Duration
	simOpts   []heston.Option
}

// NewService 创建服务
func NewService(opts ...Option) *Service {
	s := &Service{ids: uuidGenerator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimulationRequest 一次模拟请求。Seed 为空时由模拟器随机选择。
type SimulationRequest struct {
	RequestID string               `json:"requestId,omitempty"`
	Params    risk.ModelParameters `json:"params"`
	Seed      *uint64              `json:"seed,omitempty"`

	// 只要摘要，不回传路径和终值分布（NATS 单条消息有大小上限）
	SummaryOnly bool `json:"summaryOnly,omitempty"`
}

// SimulationReport 模拟结果加上服务层的附加信息
type SimulationReport struct {
	RunID string `json:"runId"`
	heston.SimulationOutcome

	// sqrt(theta) 常数波动率下的 Black-Scholes 价格
	BlackScholesPrice float64 `json:"blackScholesPrice"`

	// 蒙特卡洛价格反推的隐含波动率，价格落在无套利区间外时为空
	ImpliedVolatility *float64 `json:"impliedVolatility"`
}

// Simulate 运行一次蒙特卡洛定价
func (s *Service) Simulate(ctx context.Context, req SimulationRequest) (*SimulationReport, error) {
	p := req.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.limits.check(p); err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	opts := append([]heston.Option(nil), s.simOpts...)
	if req.Seed != nil {
		opts = append(opts, heston.WithSeed(*req.Seed))
	}

	start := time.Now()
	outcome, err := heston.SimulateContext(ctx, p, opts...)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}
	elapsed := time.Since(start)

	report := &SimulationReport{
		RunID:             s.ids.NextID(),
		SimulationOutcome: *outcome,
	}
	if ref, err := options.ReferencePrice(p); err == nil {
		report.BlackScholesPrice = ref
	}
	if iv, err := options.ImpliedVolatility(p.OptionType, p.S0, p.K, p.R, outcome.Price, p.T); err == nil {
		report.ImpliedVolatility = &iv
	}

	if s.recorder != nil {
		s.recorder.ObserveSimulation(string(p.OptionType), p.NumPaths, elapsed)
	}

	logger.Info(ctx, "simulation completed",
		slog.String("run_id", report.RunID),
		slog.String("request_id", req.RequestID),
		slog.String("option_type", string(p.OptionType)),
		slog.Int("num_paths", p.NumPaths),
		slog.Int("time_steps", p.TimeSteps),
		slog.Float64("price", outcome.Price),
		slog.Float64("std_err", outcome.StandardError),
		slog.Duration("elapsed", elapsed))

	s.publishCompleted(ctx, req, report)
	return report, nil
}

// Sensitivities 常数波动率近似下的五个 Greeks
func (s *Service) Sensitivities(_ context.Context, p risk.ModelParameters) (options.SensitivityBundle, error) {
	return options.Sensitivities(p)
}

// EstimateResources 量子资源估算，结果只取决于 (N, M)，可以缓存
func (s *Service) EstimateResources(ctx context.Context, p risk.ModelParameters) (quantum.ResourceEstimate, error) {
	if err := p.Validate(); err != nil {
		return quantum.ResourceEstimate{}, err
	}

	key := QuantumKey(p.NumPaths, p.TimeSteps)
	var cached quantum.ResourceEstimate
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	est, err := quantum.EstimateResources(p)
	if err != nil {
		return quantum.ResourceEstimate{}, err
	}
	if s.recorder != nil {
		s.recorder.ObserveResourceEstimate()
	}
	s.store(ctx, key, est)
	return est, nil
}

// TermStructure Greeks 期限结构
func (s *Service) TermStructure(ctx context.Context, p risk.ModelParameters) ([]options.TermPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := TermStructureKey(p)
	var cached []options.TermPoint
	if s.lookup(ctx, key, &cached) {
		return cached, nil
	}

	points, err := options.TermStructure(p)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, points)
	return points, nil
}

// =============================================================================
// 内部实现
// =============================================================================

// lookup 缓存出错只记录日志，按 miss 处理
func (s *Service) lookup(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}

	hit, err := s.cache.Get(ctx, key, dst)
	result := metrics.CacheMiss
	switch {
	case err != nil:
		result = metrics.CacheError
		logger.Warn(ctx, "cache lookup failed", slog.String("key", key), slog.Any("error", err))
		hit = false
	case hit:
		result = metrics.CacheHit
	}
	if s.recorder != nil {
		s.recorder.ObserveCache(result)
	}
	return hit
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		logger.Warn(ctx, "cache store failed", slog.String("key", key), slog.Any("error", err))
	}
}

// publishCompleted 事件发布失败不影响本次结果
func (s *Service) publishCompleted(ctx context.Context, req SimulationRequest, r *SimulationReport) {
	if s.publisher == nil {
		return
	}
	evt := NewSimulationCompleted(req, r)
	if err := s.publisher.PublishSimulationCompleted(ctx, evt); err != nil {
		logger.Warn(ctx, "publish simulation completed failed",
			slog.String("run_id", r.RunID), slog.Any("error", err))
	}
}

type uuidGenerator struct{}

func (uuidGenerator) NextID() string { return uuid.NewString() }
