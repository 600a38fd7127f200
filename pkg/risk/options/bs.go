package options

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"hestonq.com/pkg/risk"
)

// 隐含波动率牛顿迭代参数
const (
	ivInitialGuess  = 0.2
	ivTolerance     = 1e-6
	ivMaxIterations = 100
)

var (
	// ErrInvalidInputs 价格、执行价非正，或波动率、期限为负
	ErrInvalidInputs = errors.New("invalid inputs")

	// 隐含波动率牛顿迭代未收敛
	ErrNoConvergence = errors.New("failed to converge to implied volatility")
)

/*
Black-Scholes 闭式解在这里有两个用途：

1. 作为 Heston 蒙特卡洛价格的参照：xi=0 且 v0=theta 时，Heston 退化为常数波动率 sqrt(theta)，
   模拟价格应当落在 Black-Scholes 价格附近几个标准误之内。
2. 作为 Greeks 的近似代理：真实的 Heston Greeks 需要重新模拟或对特征函数求导，成本太高，
   这里统一用 vol = sqrt(theta) 的 Black-Scholes Greeks 近似（见 greeks.go）。
*/

// PriceCallBS 无分红欧式看涨的 Black-Scholes 价格，r、sigma、T 均为年化口径
func PriceCallBS(S, K, r, sigma, T float64) (float64, error) {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return 0, err
	}

	// 到期即内在价值
	if T == 0 {
		return math.Max(S-K, 0), nil
	}

	// 无波动时终值确定
	if sigma == 0 {
		return math.Max(S-K*math.Exp(-r*T), 0), nil
	}

	d1 := calcD1(S, K, r, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)

	return S*normCDF(d1) - K*math.Exp(-r*T)*normCDF(d2), nil
}

// PricePutBS 无分红欧式看跌
func PricePutBS(S, K, r, sigma, T float64) (float64, error) {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return 0, err
	}

	if T == 0 {
		return math.Max(K-S, 0), nil
	}

	if sigma == 0 {
		return math.Max(K*math.Exp(-r*T)-S, 0), nil
	}

	d1 := calcD1(S, K, r, sigma, T)
	d2 := d1 - sigma*math.Sqrt(T)

	return K*math.Exp(-r*T)*normCDF(-d2) - S*normCDF(-d1), nil
}

// Price 按期权方向分发
func Price(kind risk.OptionKind, S, K, r, sigma, T float64) (float64, error) {
	if kind == risk.Put {
		return PricePutBS(S, K, r, sigma, T)
	}
	return PriceCallBS(S, K, r, sigma, T)
}

// ReferencePrice 用长期波动率 sqrt(theta) 计算常数波动率下的参照价
func ReferencePrice(p risk.ModelParameters) (float64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return Price(p.OptionType, p.S0, p.K, p.R, math.Sqrt(p.Theta), p.T)
}

// ImpliedVolatility 通过期权价格反推隐含波动率
// 看跌期权通过 Put-Call Parity 转成看涨价格后再迭代。
func ImpliedVolatility(kind risk.OptionKind, S, K, r, price, T float64) (float64, error) {
	if err := validateBSInputs(S, K, 0, T); err != nil {
		return 0, err
	}
	if T == 0 {
		return 0, ErrInvalidInputs
	}

	callPrice := price
	if kind == risk.Put {
		// C = P + S - K*e^{-rT}
		callPrice = price + S - K*math.Exp(-r*T)
	}

	// 无套利区间：max(S - K*e^{-rT}, 0) < C < S，区间外不存在隐含波动率
	lower := math.Max(S-K*math.Exp(-r*T), 0)
	if callPrice <= lower || callPrice >= S {
		return 0, ErrInvalidInputs
	}

	sigma := ivInitialGuess
	for range ivMaxIterations {
		model, err := PriceCallBS(S, K, r, sigma, T)
		if err != nil {
			return 0, err
		}
		diff := callPrice - model
		if math.Abs(diff) < ivTolerance {
			return sigma, nil
		}

		vega, err := Vega(S, K, r, sigma, T)
		if err != nil {
			return 0, err
		}
		// vega 太小时牛顿步长会爆掉
		if vega < 1e-10 {
			return 0, ErrNoConvergence
		}

		sigma = math.Max(sigma+diff/vega, 1e-4)
	}

	return 0, ErrNoConvergence
}

// Vega 计算欧式期权的 Vega（波动率变化 1.0 的价格变化，未缩放）
func Vega(S, K, r, sigma, T float64) (float64, error) {
	if err := validateBSInputs(S, K, sigma, T); err != nil {
		return 0, err
	}
	if T == 0 || sigma == 0 {
		return 0, nil
	}
	d1 := calcD1(S, K, r, sigma, T)
	return S * math.Sqrt(T) * normPDF(d1), nil
}

func validateBSInputs(S, K, sigma, T float64) error {
	if S <= 0 || K <= 0 || sigma < 0 || T < 0 {
		return ErrInvalidInputs
	}
	return nil
}

// calcD1 d1 = [ln(S/K) + (r + sigma^2/2)T] / (sigma*sqrt(T))
func calcD1(S, K, r, sigma, T float64) float64 {
	return (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
}

// normCDF 标准正态分布的 CDF
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normPDF 标准正态分布的 PDF
func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
