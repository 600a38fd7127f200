package cmd

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/options"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestResources_JSON(t *testing.T) {
	out, err := run(t, "resources", "--paths", "1000", "--steps", "50", "--format", "json")
	require.NoError(t, err)

	var est quantum.ResourceEstimate
	require.NoError(t, sonnet.Unmarshal([]byte(out), &est))
	assert.Equal(t, int64(25), est.GroverIterations)
	assert.Equal(t, int64(15_562_500), est.CNOTCount)
	assert.Equal(t, int64(127), est.EstimatedQubits)
}

func TestResources_Table(t *testing.T) {
	out, err := run(t, "resources", "-n", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "grover iterations")
	assert.Contains(t, out, "15,562,500")
}

func TestGreeks_Put(t *testing.T) {
	out, err := run(t, "greeks", "--type", "put", "-f", "json")
	require.NoError(t, err)

	var g options.SensitivityBundle
	require.NoError(t, sonnet.Unmarshal([]byte(out), &g))
	assert.InDelta(t, -0.3631693, g.Delta, 1e-6)
}

func TestTermStructure(t *testing.T) {
	out, err := run(t, "term-structure", "-f", "json")
	require.NoError(t, err)

	var points []options.TermPoint
	require.NoError(t, sonnet.Unmarshal([]byte(out), &points))
	assert.Len(t, points, 21)

	out, err = run(t, "term-structure")
	require.NoError(t, err)
	assert.Contains(t, out, "gamma x1000")
}

func TestSimulate_SeedReproducible(t *testing.T) {
	args := []string{"simulate", "-n", "2000", "-m", "10", "--seed", "3", "-f", "json"}

	first, err := run(t, args...)
	require.NoError(t, err)
	second, err := run(t, append(args, "--workers", "1")...)
	require.NoError(t, err)

	var a, b pricing.SimulationReport
	require.NoError(t, sonnet.Unmarshal([]byte(first), &a))
	require.NoError(t, sonnet.Unmarshal([]byte(second), &b))
	assert.Equal(t, uint64(3), a.Seed)
	assert.Equal(t, a.Price, b.Price)
	assert.Empty(t, a.FinalPrices)
}

func TestSimulate_Table(t *testing.T) {
	out, err := run(t, "simulate", "-n", "1000", "-m", "5", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "black-scholes")
	assert.Contains(t, out, "1,000 x 5")
}

func TestInvalidInput(t *testing.T) {
	_, err := run(t, "greeks", "--type", "straddle")
	assert.ErrorIs(t, err, risk.ErrInvalidParameters)

	_, err = run(t, "greeks", "--rho", "2")
	var verr *risk.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rho", verr.Field)

	_, err = run(t, "greeks", "--format", "xml")
	assert.Error(t, err)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", thousands(0))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "-12,345,678", thousands(-12345678))
}

func TestRound(t *testing.T) {
	assert.Equal(t, "0.3", round(0.1+0.2, 4))
	assert.Equal(t, "10.4506", round(10.450583572185565, 4))
	assert.Equal(t, "NaN", round(math.NaN(), 2))
}
