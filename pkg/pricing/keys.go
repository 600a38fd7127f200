package pricing

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"hestonq.com/pkg/risk"
)

const keyPrefix = "heston:"

// QuantumKey 资源估算只依赖 (N, M)
func QuantumKey(numPaths, timeSteps int) string {
	return keyPrefix + "quantum:" + strconv.Itoa(numPaths) + ":" + strconv.Itoa(timeSteps)
}

// TermStructureKey 期限结构只依赖 S0, K, r, T, theta 和期权方向
func TermStructureKey(p risk.ModelParameters) string {
	var b strings.Builder
	b.WriteString(string(p.OptionType))
	for _, f := range []float64{p.S0, p.K, p.R, p.T, p.Theta} {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return keyPrefix + "greeks-ts:" + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
