package options

import (
	"math"

	"hestonq.com/pkg/risk"
)

const (
	// minMaturity 临近到期时 sqrt(T) 趋于 0，d1 会除零，这里给一个下限
	minMaturity = 1e-4

	// minVolatility theta=0 时 vol=0 同样会除零；取极小值后 d1 趋于 ±Inf，
	// Greeks 取到各自的极限值，而不是 NaN
	minVolatility = 1e-8

	daysPerYear = 365.0
)

// SensitivityBundle 五个风险敏感度
// 单位约定：
// - Vega 对应波动率变化 1%
// - Theta 按天计（年化值 / 365）
// - Rho 对应利率变化 1%
type SensitivityBundle struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// Sensitivities 计算 Greeks。
//
// 这里刻意用常数波动率的 Black-Scholes 公式作为 Heston Greeks 的近似，
// 波动率取长期方差的平方根 sqrt(theta)。结果只依赖参数本身，不依赖模拟出来的路径。
func Sensitivities(p risk.ModelParameters) (SensitivityBundle, error) {
	if err := p.Validate(); err != nil {
		return SensitivityBundle{}, err
	}
	return sensitivities(p.OptionType, p.S0, p.K, p.R, p.T, math.Sqrt(p.Theta)), nil
}

func sensitivities(kind risk.OptionKind, S, K, r, T, vol float64) SensitivityBundle {
	T = math.Max(T, minMaturity)
	vol = math.Max(vol, minVolatility)
	sqrtT := math.Sqrt(T)

	d1 := calcD1(S, K, r, vol, T)
	d2 := d1 - vol*sqrtT

	pdfD1 := normPDF(d1)
	discountedStrike := K * math.Exp(-r*T)

	// Gamma 和 Vega 看涨看跌相同
	gamma := pdfD1 / (S * vol * sqrtT)
	vega := S * sqrtT * pdfD1 / 100

	decay := -(S * vol * pdfD1) / (2 * sqrtT)

	var delta, theta, rho float64
	if kind == risk.Put {
		delta = normCDF(d1) - 1
		theta = (decay + r*discountedStrike*normCDF(-d2)) / daysPerYear
		rho = -discountedStrike * T * normCDF(-d2) / 100
	} else {
		delta = normCDF(d1)
		theta = (decay - r*discountedStrike*normCDF(d2)) / daysPerYear
		rho = discountedStrike * T * normCDF(d2) / 100
	}

	return SensitivityBundle{
		Delta: delta,
		Gamma: gamma,
		Vega:  vega,
		Theta: theta,
		Rho:   rho,
	}
}
