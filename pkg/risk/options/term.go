package options

import (
	"math"
	"sort"

	"hestonq.com/pkg/risk"
)

const (
	termStructureSteps = 20

	// 期限结构最短算到 0.01 年
	termStructureFloor = 0.01

	// Gamma 数值太小，展示时放大 1000 倍
	gammaDisplayScale = 1000
)

// TermPoint Greeks 期限结构上的一个点
type TermPoint struct {
	Time  float64 `json:"time"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
}

// TermStructure 固定其它参数，只改变剩余期限，观察 Delta / Gamma / Vega 随时间的变化。
// 期限从 T 线性递减到 0.01，共 21 个点，按时间升序返回。
func TermStructure(p risk.ModelParameters) ([]TermPoint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	vol := math.Sqrt(p.Theta)
	points := make([]TermPoint, 0, termStructureSteps+1)
	for i := 0; i <= termStructureSteps; i++ {
		t := p.T - (float64(i)/termStructureSteps)*(p.T-termStructureFloor)
		if t <= 0 {
			continue
		}

		g := sensitivities(p.OptionType, p.S0, p.K, p.R, t, vol)
		points = append(points, TermPoint{
			Time:  math.Round(t*100) / 100,
			Delta: g.Delta,
			Gamma: g.Gamma * gammaDisplayScale,
			Vega:  g.Vega,
		})
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	return points, nil
}
