// 文件: pkg/quantum/resource.go
package quantum

import (
	"math"
	"math/bits"

	"hestonq.com/pkg/risk"
)

/*
量子振幅估计（QAE）资源估算。

经典蒙特卡洛误差按 1/sqrt(N) 收敛；QAE 达到同样精度 ε 只需要约 (π/4)(1/ε) 次 Grover 迭代。
这里把一次 Heston 离散步骤翻译成容错门集合下的算术电路成本，整体是纯解析计算，不做任何模拟。

下面的单位成本是固定的标定常数，直接使用，不从第一性原理推导。
*/

const (
	// 精度位数下限
	minPrecisionBits = 10

	// 各算术原语的 T 门成本，都按精度位数 b 线性放大
	costMulPerBit      = 20
	costAddPerBit      = 4
	costSqrtPerBit     = 40
	costGaussianPerBit = 100

	// 单个离散步骤：两次高斯采样、一次开方、四次乘法、三次加法
	gaussiansPerStep = 2
	sqrtsPerStep     = 1
	mulsPerStep      = 4
	addsPerStep      = 3

	// 寄存器宽度相对 b 的倍数
	stateQubitsPerBit   = 2
	ancillaQubitsPerBit = 6

	// QAE 相位寄存器在 log2(k) 之外的固定开销
	qaeQubitOverhead = 2
)

// QubitBreakdown 逻辑比特的三部分
type QubitBreakdown struct {
	State   int64 `json:"state"`
	Ancilla int64 `json:"ancilla"`
	QAE     int64 `json:"qae"`
}

// Total 三部分之和
func (q QubitBreakdown) Total() int64 {
	return q.State + q.Ancilla + q.QAE
}

// ResourceEstimate 达到与经典模拟相同精度时的量子资源
type ResourceEstimate struct {
	// 目标误差 ε = 1/sqrt(N)
	EstimatedQuantumError float64 `json:"estimatedQuantumError"`

	// 定点寄存器精度位数 b
	PrecisionBits int64 `json:"precisionBits"`

	// Grover 迭代次数 k
	GroverIterations int64 `json:"groverIterations"`

	// 理论加速比 N/k
	TheoreticalSpeedup float64 `json:"theoreticalSpeedup"`

	QubitBreakdown  QubitBreakdown `json:"qubitBreakdown"`
	EstimatedQubits int64          `json:"estimatedQubits"`

	TGateCount   int64 `json:"tGateCount"`
	CNOTCount    int64 `json:"cnotCount"`
	OracleDepth  int64 `json:"oracleDepth"`
	CircuitDepth int64 `json:"circuitDepth"`
}

// EstimateResources 只用到路径数 N 和时间步数 M，其余参数只参与校验
func EstimateResources(p risk.ModelParameters) (ResourceEstimate, error) {
	if err := p.Validate(); err != nil {
		return ResourceEstimate{}, err
	}
	return estimate(int64(p.NumPaths), int64(p.TimeSteps)), nil
}

func estimate(numPaths, timeSteps int64) ResourceEstimate {
	eps := 1 / math.Sqrt(float64(numPaths))

	b := int64(math.Ceil(minPrecisionBits + math.Max(0, -math.Log2(eps))))
	k := int64(math.Ceil((math.Pi / 4) * (1 / eps)))

	perStep := gaussiansPerStep*costGaussianPerBit*b +
		sqrtsPerStep*costSqrtPerBit*b +
		mulsPerStep*costMulPerBit*b +
		addsPerStep*costAddPerBit*b

	oracleDepth := timeSteps * perStep
	tGates := oracleDepth * k

	qubits := QubitBreakdown{
		State:   stateQubitsPerBit * b,
		Ancilla: ancillaQubitsPerBit * b,
		QAE:     ceilLog2(k) + qaeQubitOverhead,
	}

	return ResourceEstimate{
		EstimatedQuantumError: eps,
		PrecisionBits:         b,
		GroverIterations:      k,
		TheoreticalSpeedup:    float64(numPaths) / float64(k),
		QubitBreakdown:        qubits,
		EstimatedQubits:       qubits.Total(),
		TGateCount:            tGates,
		CNOTCount:             cnotsFor(tGates),
		OracleDepth:           oracleDepth,
		CircuitDepth:          oracleDepth * k,
	}
}

// cnotsFor CNOT 数按 T 门数的 2.5 倍计，向上取整，用整数运算避免浮点误差
func cnotsFor(tGates int64) int64 {
	return (5*tGates + 1) / 2
}

// ceilLog2 k>=1
func ceilLog2(k int64) int64 {
	if k <= 1 {
		return 0
	}
	return int64(bits.Len64(uint64(k - 1)))
}
