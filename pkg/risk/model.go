package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// OptionKind 表示期权方向。
// 我们只支持欧式期权：
// - Call 看涨，到期收益 max(S-K, 0)
// - Put  看跌，到期收益 max(K-S, 0)
type OptionKind string

const (
	Call OptionKind = "Call"
	Put  OptionKind = "Put"
)

// ParseOptionKind 解析期权方向，大小写不敏感，支持 c/p 简写
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return "", &ValidationError{Field: "optionType", Reason: fmt.Sprintf("unknown option type %q", s)}
}

// Payoff 到期收益
func (k OptionKind) Payoff(spot, strike float64) float64 {
	if k == Put {
		return math.Max(0, strike-spot)
	}
	return math.Max(0, spot-strike)
}

// ModelParameters 是三个计算组件（路径模拟 / Greeks / 量子资源估算）的统一输入。
//
// 所有利率、方差、时间都是年化口径，和 T 保持一致。
// 这是一个值对象：各组件只读取，不修改。
// JSON 字段名沿用前端已有的协议。
type ModelParameters struct {
	// S0：标的当前价格 (>0)
	S0 float64 `json:"S0"`

	// K：执行价 (>0)
	K float64 `json:"K"`

	// r：无风险利率（连续复利）
	R float64 `json:"r"`

	// T：剩余期限，单位年 (>0)
	T float64 `json:"T"`

	// v0：初始方差 (>=0)，注意是方差不是波动率，0.04 对应 20% 波动率
	V0 float64 `json:"v0"`

	// theta：长期方差 (>=0)
	Theta float64 `json:"theta"`

	// kappa：均值回复速度 (>0)
	Kappa float64 `json:"kappa"`

	// xi：波动率的波动率 (>=0)
	Xi float64 `json:"xi"`

	// rho：价格与方差两条布朗运动的相关系数，[-1, 1]
	Rho float64 `json:"rho"`

	// numPaths：模拟路径数 N
	NumPaths int `json:"numPaths"`

	// timeSteps：每条路径的时间步数 M
	TimeSteps int `json:"timeSteps"`

	OptionType OptionKind `json:"optionType"`
}

// DefaultParameters 返回基准场景：平值看涨，20% 波动率，一年期。
// 对应的 Black-Scholes 价格约为 10.45。
func DefaultParameters() ModelParameters {
	return ModelParameters{
		S0:         100,
		K:          100,
		R:          0.05,
		T:          1,
		V0:         0.04,
		Theta:      0.04,
		Kappa:      2,
		Xi:         0.3,
		Rho:        -0.5,
		NumPaths:   100000,
		TimeSteps:  50,
		OptionType: Call,
	}
}

var (
	// ErrInvalidParameters 所有参数校验错误都可以用 errors.Is 匹配到它
	ErrInvalidParameters = errors.New("invalid model parameters")
)

// ValidationError 携带出错的字段名，方便接口层直接返回给调用方
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidParameters }

// Validate 在任何计算开始前做参数校验。
// 只拒绝越界输入；T 很小、方差为 0 这类边界情况由各组件内部截断处理，不报错。
func (p ModelParameters) Validate() error {
	finite := []struct {
		name string
		v    float64
	}{
		{"S0", p.S0}, {"K", p.K}, {"r", p.R}, {"T", p.T}, {"v0", p.V0},
		{"theta", p.Theta}, {"kappa", p.Kappa}, {"xi", p.Xi}, {"rho", p.Rho},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ValidationError{Field: f.name, Reason: "must be a finite number"}
		}
	}

	switch {
	case p.S0 <= 0:
		return &ValidationError{Field: "S0", Reason: "must be positive"}
	case p.K <= 0:
		return &ValidationError{Field: "K", Reason: "must be positive"}
	case p.T <= 0:
		return &ValidationError{Field: "T", Reason: "must be positive"}
	case p.V0 < 0:
		return &ValidationError{Field: "v0", Reason: "must not be negative"}
	case p.Theta < 0:
		return &ValidationError{Field: "theta", Reason: "must not be negative"}
	case p.Kappa <= 0:
		return &ValidationError{Field: "kappa", Reason: "must be positive"}
	case p.Xi < 0:
		return &ValidationError{Field: "xi", Reason: "must not be negative"}
	case p.Rho < -1 || p.Rho > 1:
		return &ValidationError{Field: "rho", Reason: "must be within [-1, 1]"}
	case p.NumPaths < 1:
		return &ValidationError{Field: "numPaths", Reason: "must be at least 1"}
	case p.TimeSteps < 1:
		return &ValidationError{Field: "timeSteps", Reason: "must be at least 1"}
	}

	if p.OptionType != Call && p.OptionType != Put {
		return &ValidationError{Field: "optionType", Reason: fmt.Sprintf("must be %q or %q", Call, Put)}
	}
	return nil
}

// WithMaturity 返回替换了期限的副本，原值不变
func (p ModelParameters) WithMaturity(t float64) ModelParameters {
	p.T = t
	return p
}
