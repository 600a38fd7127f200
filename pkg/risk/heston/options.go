package heston

import (
	"runtime"
	"time"
)

const (
	// DefaultVisualizedPaths 保留完整轨迹的路径条数上限，与 N 无关
	DefaultVisualizedPaths = 50

	// DefaultBlockSize 每个任务块包含的路径数
	DefaultBlockSize = 2048
)

type settings struct {
	seed            uint64
	seeded          bool
	workers         int
	visualizedPaths int
	blockSize       int
}

// Option 模拟参数之外的运行选项，不影响模型本身
type Option func(*settings)

// WithSeed 固定根种子。同一个种子得到完全相同的结果，与并发度无关。
func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.seed = seed
		s.seeded = true
	}
}

// WithWorkers 并发计算的块数上限，<=0 表示使用 GOMAXPROCS
func WithWorkers(n int) Option {
	return func(s *settings) {
		s.workers = n
	}
}

// WithVisualizedPaths 修改保留完整轨迹的路径数，<0 按 0 处理
func WithVisualizedPaths(n int) Option {
	return func(s *settings) {
		s.visualizedPaths = n
	}
}

// WithBlockSize 修改任务块大小，<=0 使用默认值
func WithBlockSize(n int) Option {
	return func(s *settings) {
		s.blockSize = n
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		workers:         runtime.GOMAXPROCS(0),
		visualizedPaths: DefaultVisualizedPaths,
		blockSize:       DefaultBlockSize,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if !s.seeded {
		s.seed = uint64(time.Now().UnixNano())
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	if s.visualizedPaths < 0 {
		s.visualizedPaths = 0
	}
	if s.blockSize <= 0 {
		s.blockSize = DefaultBlockSize
	}
	return s
}
