package heston

import (
	"math"

	"golang.org/x/exp/rand"

	"hestonq.com/pkg/risk"
)

// pathSeed 用 splitmix64 把 (根种子, 路径编号) 打散成单条路径的种子。
// 每条路径的随机数只由这两个值决定，与哪个 goroutine、哪个块计算它无关。
func pathSeed(root uint64, index int) uint64 {
	z := root + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// stepper 一次模拟中所有路径共用的离散化常量，只读
type stepper struct {
	s0     float64
	logS0  float64
	v0     float64
	r      float64
	kappa  float64
	theta  float64
	xi     float64
	rho    float64
	rhoBar float64 // sqrt(1 - rho^2)
	dt     float64
	sqrtDt float64
	steps  int
}

func newStepper(p risk.ModelParameters) stepper {
	dt := p.T / float64(p.TimeSteps)
	return stepper{
		s0:     p.S0,
		logS0:  math.Log(p.S0),
		v0:     p.V0,
		r:      p.R,
		kappa:  p.Kappa,
		theta:  p.Theta,
		xi:     p.Xi,
		rho:    p.Rho,
		rhoBar: math.Sqrt(math.Max(0, 1-p.Rho*p.Rho)),
		dt:     dt,
		sqrtDt: math.Sqrt(dt),
		steps:  p.TimeSteps,
	}
}

// walk 按 log-Euler + full truncation 走完一条路径，返回到期价格。
// record 非空时每一步结束后回调 (步数, log 价格, 方差)。
func (s *stepper) walk(rng *rand.Rand, record func(step int, x, v float64)) float64 {
	x, v := s.logS0, s.v0
	for i := 1; i <= s.steps; i++ {
		z1 := rng.NormFloat64()
		z2 := rng.NormFloat64()

		// 截断只作用在漂移和扩散项里，方差状态本身可以是负的
		vPrev := math.Max(0, v)
		diffusion := math.Sqrt(vPrev) * s.sqrtDt

		w2 := s.rho*z1 + s.rhoBar*z2
		v += s.kappa*(s.theta-vPrev)*s.dt + s.xi*diffusion*w2
		x += (s.r-0.5*vPrev)*s.dt + diffusion*z1

		if record != nil {
			record(i, x, v)
		}
	}
	return math.Exp(x)
}

// trace 走一条路径并记录完整轨迹，包含 t=0 的起点
func (s *stepper) trace(rng *rand.Rand, pathID int) ([]PathSample, float64) {
	samples := make([]PathSample, 0, s.steps+1)
	samples = append(samples, PathSample{
		Time:   0,
		Value:  s.s0,
		Vol:    math.Max(0, s.v0),
		PathID: pathID,
	})

	terminal := s.walk(rng, func(step int, x, v float64) {
		samples = append(samples, PathSample{
			Time:   float64(step) * s.dt,
			Value:  math.Exp(x),
			Vol:    math.Max(0, v),
			PathID: pathID,
		})
	})
	return samples, terminal
}
