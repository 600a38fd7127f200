package heston

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/options"
)

func smallParams(numPaths int) risk.ModelParameters {
	p := risk.DefaultParameters()
	p.NumPaths = numPaths
	p.TimeSteps = 20
	return p
}

func TestSimulate_InvalidParameters(t *testing.T) {
	cases := map[string]func(p *risk.ModelParameters){
		"numPaths":  func(p *risk.ModelParameters) { p.NumPaths = 0 },
		"timeSteps": func(p *risk.ModelParameters) { p.TimeSteps = 0 },
		"T":         func(p *risk.ModelParameters) { p.T = 0 },
		"S0":        func(p *risk.ModelParameters) { p.S0 = -5 },
		"K":         func(p *risk.ModelParameters) { p.K = 0 },
		"rho":       func(p *risk.ModelParameters) { p.Rho = -1.01 },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			p := smallParams(10)
			mutate(&p)

			out, err := Simulate(p, WithSeed(1))
			require.Error(t, err)
			assert.Nil(t, out)

			var verr *risk.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
			assert.True(t, errors.Is(err, risk.ErrInvalidParameters))
		})
	}
}

func TestSimulate_OutcomeShape(t *testing.T) {
	p := smallParams(500)

	out, err := Simulate(p, WithSeed(7))
	require.NoError(t, err)

	require.Len(t, out.FinalPrices, p.NumPaths)
	for _, s := range out.FinalPrices {
		assert.Greater(t, s, 0.0)
	}
	assert.GreaterOrEqual(t, out.StandardError, 0.0)
	assert.GreaterOrEqual(t, out.ExecutionTime, 0.0)
	assert.Equal(t, uint64(7), out.Seed)

	// 前 50 条路径，每条 M+1 个点
	require.Len(t, out.Paths, DefaultVisualizedPaths*(p.TimeSteps+1))
	for id := 0; id < DefaultVisualizedPaths; id++ {
		first := out.Paths[id*(p.TimeSteps+1)]
		assert.Equal(t, id, first.PathID)
		assert.Equal(t, 0.0, first.Time)
		assert.Equal(t, p.S0, first.Value)
		assert.Equal(t, p.V0, first.Vol)

		last := out.Paths[(id+1)*(p.TimeSteps+1)-1]
		assert.InDelta(t, p.T, last.Time, 1e-12)
		assert.Equal(t, out.FinalPrices[id], last.Value)
	}
	for _, s := range out.Paths {
		assert.GreaterOrEqual(t, s.Vol, 0.0)
	}

	greeks, err := options.Sensitivities(p)
	require.NoError(t, err)
	assert.Equal(t, greeks, out.Greeks)
}

func TestSimulate_VisualizationCap(t *testing.T) {
	p := smallParams(12)

	out, err := Simulate(p, WithSeed(3))
	require.NoError(t, err)
	assert.Len(t, out.Paths, 12*(p.TimeSteps+1))

	out, err = Simulate(p, WithSeed(3), WithVisualizedPaths(0))
	require.NoError(t, err)
	assert.Empty(t, out.Paths)
	assert.Len(t, out.FinalPrices, 12)

	out, err = Simulate(smallParams(5000), WithSeed(3), WithVisualizedPaths(4))
	require.NoError(t, err)
	ids := map[int]bool{}
	for _, s := range out.Paths {
		ids[s.PathID] = true
	}
	assert.Len(t, ids, 4)
}

func TestSimulate_DeterministicAcrossWorkers(t *testing.T) {
	p := smallParams(3000)

	base, err := Simulate(p, WithSeed(42), WithWorkers(1), WithBlockSize(64))
	require.NoError(t, err)

	for _, workers := range []int{2, 5, 16} {
		out, err := Simulate(p, WithSeed(42), WithWorkers(workers), WithBlockSize(64))
		require.NoError(t, err)

		assert.Equal(t, base.Price, out.Price, "workers=%d", workers)
		assert.Equal(t, base.StandardError, out.StandardError, "workers=%d", workers)
		assert.Equal(t, base.FinalPrices, out.FinalPrices, "workers=%d", workers)
		assert.Equal(t, base.Paths, out.Paths, "workers=%d", workers)
	}

	// 块大小改变的是归并的分组，路径本身不变
	other, err := Simulate(p, WithSeed(42), WithBlockSize(1000))
	require.NoError(t, err)
	assert.Equal(t, base.FinalPrices, other.FinalPrices)
	assert.InDelta(t, base.Price, other.Price, 1e-9)

	diff, err := Simulate(p, WithSeed(43), WithBlockSize(64))
	require.NoError(t, err)
	assert.NotEqual(t, base.FinalPrices, diff.FinalPrices)
}

func TestPath_ReproducesSimulatedTrajectory(t *testing.T) {
	p := smallParams(100)

	out, err := Simulate(p, WithSeed(99), WithBlockSize(8))
	require.NoError(t, err)

	trace, err := Path(p, 99, 17)
	require.NoError(t, err)
	require.Len(t, trace, p.TimeSteps+1)

	offset := 17 * (p.TimeSteps + 1)
	assert.Equal(t, out.Paths[offset:offset+p.TimeSteps+1], trace)

	_, err = Path(p, 99, p.NumPaths)
	require.Error(t, err)
}

func TestSimulate_ReferenceScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k-path scenario in short mode")
	}
	p := risk.DefaultParameters()

	out, err := Simulate(p, WithSeed(2024))
	require.NoError(t, err)

	// 常数波动率 20% 的 Black-Scholes 价格约 10.45
	assert.InDelta(t, 10.45, out.Price, 0.3)
	assert.Less(t, out.StandardError, 0.1)
}

func TestSimulate_ConstantVolatilityMatchesBlackScholes(t *testing.T) {
	// xi=0, rho=0, v0=theta 时方差恒为 theta，终值服从对数正态分布
	p := risk.DefaultParameters()
	p.Xi = 0
	p.Rho = 0
	p.NumPaths = 50000
	p.TimeSteps = 10

	for _, kind := range []risk.OptionKind{risk.Call, risk.Put} {
		p.OptionType = kind
		out, err := Simulate(p, WithSeed(11))
		require.NoError(t, err)

		bs, err := options.ReferencePrice(p)
		require.NoError(t, err)
		assert.InDelta(t, bs, out.Price, 4*out.StandardError, "%s", kind)

		logs := make([]float64, len(out.FinalPrices))
		for i, s := range out.FinalPrices {
			logs[i] = math.Log(s)
		}
		mean, std := stat.MeanStdDev(logs, nil)
		assert.InDelta(t, math.Log(p.S0)+(p.R-0.5*p.Theta)*p.T, mean, 0.01)
		assert.InDelta(t, math.Sqrt(p.Theta*p.T), std, 0.01)
	}
}

func TestSimulate_StandardErrorScaling(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence check in short mode")
	}
	p := smallParams(10000)
	small, err := Simulate(p, WithSeed(5))
	require.NoError(t, err)

	p.NumPaths = 160000
	large, err := Simulate(p, WithSeed(5))
	require.NoError(t, err)

	// N 扩大 16 倍，标准误缩小约 4 倍
	ratio := small.StandardError / large.StandardError
	assert.InDelta(t, 4.0, ratio, 0.6)
}

func TestSimulate_ZeroVarianceIsDeterministic(t *testing.T) {
	p := smallParams(200)
	p.V0, p.Theta, p.Xi = 0, 0, 0

	out, err := Simulate(p, WithSeed(1))
	require.NoError(t, err)

	forward := p.S0 * math.Exp(p.R*p.T)
	for _, s := range out.FinalPrices {
		assert.InDelta(t, forward, s, 1e-9)
	}
	assert.InDelta(t, p.S0-p.K*math.Exp(-p.R*p.T), out.Price, 1e-9)
	assert.InDelta(t, 0.0, out.StandardError, 1e-6)
}

func TestSimulateContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := SimulateContext(ctx, smallParams(10000), WithSeed(1))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestAggregate_ClampsNegativeVariance(t *testing.T) {
	// 所有收益相同，sumSq/N - mean^2 理论上为 0，浮点下可能略小于 0
	n := 3
	payoff := 0.1
	price, stdErr := aggregate(payoff*3, payoff*payoff*3, n, 0, 1)
	assert.InDelta(t, payoff, price, 1e-15)
	assert.GreaterOrEqual(t, stdErr, 0.0)
	assert.False(t, math.IsNaN(stdErr))
}

func BenchmarkSimulate(b *testing.B) {
	p := risk.DefaultParameters()
	p.NumPaths = 20000

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Simulate(p, WithSeed(uint64(i))); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSimulate_SingleWorker(b *testing.B) {
	p := risk.DefaultParameters()
	p.NumPaths = 20000

	for i := 0; i < b.N; i++ {
		if _, err := Simulate(p, WithSeed(uint64(i)), WithWorkers(1)); err != nil {
			b.Fatal(err)
		}
	}
}
