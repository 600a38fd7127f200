package heston

import (
	"context"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/options"
)

// ===============================
// 输出结构
// ===============================

// PathSample 可视化轨迹上的一个点
// Vol 是截断后的方差 max(0, v)，字段名沿用前端协议
type PathSample struct {
	Time   float64 `json:"time"`
	Value  float64 `json:"value"`
	Vol    float64 `json:"vol"`
	PathID int     `json:"pathId"`
}

// SimulationOutcome 一次模拟的完整结果，创建后不再修改
type SimulationOutcome struct {
	// 贴现后的价格估计
	Price float64 `json:"price"`

	// 价格估计的标准误
	StandardError float64 `json:"standardError"`

	// 前 P 条路径的完整轨迹，按路径编号、时间顺序平铺
	Paths []PathSample `json:"paths"`

	// 每条路径的到期价格，长度恰好为 N
	FinalPrices []float64 `json:"finalPrices"`

	Greeks options.SensitivityBundle `json:"greeks"`

	// 耗时，毫秒
	ExecutionTime float64 `json:"executionTime"`

	// 根种子，用 WithSeed 传回去可以复现这次结果
	Seed uint64 `json:"seed"`
}

// blockResult 单个任务块的局部和
type blockResult struct {
	payoff   float64
	payoffSq float64
}

// ===============================
// 入口
// ===============================

// Simulate 用蒙特卡洛在 Heston 模型下为欧式期权定价
func Simulate(p risk.ModelParameters, opts ...Option) (*SimulationOutcome, error) {
	return SimulateContext(context.Background(), p, opts...)
}

// SimulateContext 同 Simulate，ctx 结束后不再调度新的任务块，并返回 ctx.Err()。
//
// 路径按固定大小分块并发计算。每条路径有自己的随机流，块内局部和按块序归并，
// 所以给定种子时结果与 worker 数量无关。
func SimulateContext(ctx context.Context, p risk.ModelParameters, opts ...Option) (*SimulationOutcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cfg := newSettings(opts)
	start := time.Now()

	st := newStepper(p)
	n := p.NumPaths
	visualized := min(cfg.visualizedPaths, n)
	numBlocks := (n + cfg.blockSize - 1) / cfg.blockSize

	// 各块只写自己负责的下标区间，不需要加锁
	finalPrices := make([]float64, n)
	traces := make([][]PathSample, visualized)
	blocks := make([]blockResult, numBlocks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.workers)

	for b := 0; b < numBlocks; b++ {
		if gctx.Err() != nil {
			break
		}
		lo := b * cfg.blockSize
		hi := min(lo+cfg.blockSize, n)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks[b] = runBlock(&st, p.OptionType, p.K, cfg.seed, lo, hi, finalPrices, traces)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payoffs := make([]float64, numBlocks)
	squares := make([]float64, numBlocks)
	for i, r := range blocks {
		payoffs[i] = r.payoff
		squares[i] = r.payoffSq
	}

	price, stdErr := aggregate(floats.Sum(payoffs), floats.Sum(squares), n, p.R, p.T)

	greeks, err := options.Sensitivities(p)
	if err != nil {
		return nil, err
	}

	return &SimulationOutcome{
		Price:         price,
		StandardError: stdErr,
		Paths:         flatten(traces),
		FinalPrices:   finalPrices,
		Greeks:        greeks,
		ExecutionTime: float64(time.Since(start).Microseconds()) / 1000,
		Seed:          cfg.seed,
	}, nil
}

// Path 单独复现第 index 条路径的完整轨迹，与 Simulate 在同一种子下产出的轨迹一致
func Path(p risk.ModelParameters, seed uint64, index int) ([]PathSample, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if index < 0 || index >= p.NumPaths {
		return nil, &risk.ValidationError{Field: "pathId", Reason: "out of range"}
	}

	st := newStepper(p)
	src := &rand.PCGSource{}
	src.Seed(pathSeed(seed, index))
	samples, _ := st.trace(rand.New(src), index)
	return samples, nil
}

// ===============================
// 内部实现
// ===============================

// runBlock 计算 [lo, hi) 区间内的路径，局部和按路径顺序累加
func runBlock(st *stepper, kind risk.OptionKind, strike float64, seed uint64, lo, hi int,
	finalPrices []float64, traces [][]PathSample) blockResult {

	src := &rand.PCGSource{}
	rng := rand.New(src)

	var res blockResult
	for i := lo; i < hi; i++ {
		src.Seed(pathSeed(seed, i))

		var terminal float64
		if i < len(traces) {
			traces[i], terminal = st.trace(rng, i)
		} else {
			terminal = st.walk(rng, nil)
		}

		payoff := kind.Payoff(terminal, strike)
		res.payoff += payoff
		res.payoffSq += payoff * payoff
		finalPrices[i] = terminal
	}
	return res
}

// aggregate 由收益和与平方和算贴现价格和标准误
func aggregate(sum, sumSq float64, n int, r, T float64) (price, stdErr float64) {
	count := float64(n)
	discount := math.Exp(-r * T)

	mean := sum / count
	// 浮点误差可能让方差略小于 0
	variance := math.Max(0, sumSq/count-mean*mean)

	return discount * mean, discount * math.Sqrt(variance/count)
}

func flatten(traces [][]PathSample) []PathSample {
	total := 0
	for _, t := range traces {
		total += len(t)
	}
	out := make([]PathSample, 0, total)
	for _, t := range traces {
		out = append(out, t...)
	}
	return out
}
