package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters_Valid(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())
}

func TestValidate_RejectsOutOfDomain(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(p *ModelParameters)
	}{
		{"S0", func(p *ModelParameters) { p.S0 = 0 }},
		{"K", func(p *ModelParameters) { p.K = -1 }},
		{"T", func(p *ModelParameters) { p.T = 0 }},
		{"v0", func(p *ModelParameters) { p.V0 = -0.01 }},
		{"theta", func(p *ModelParameters) { p.Theta = -0.01 }},
		{"kappa", func(p *ModelParameters) { p.Kappa = 0 }},
		{"xi", func(p *ModelParameters) { p.Xi = -1 }},
		{"rho", func(p *ModelParameters) { p.Rho = 1.0001 }},
		{"numPaths", func(p *ModelParameters) { p.NumPaths = 0 }},
		{"timeSteps", func(p *ModelParameters) { p.TimeSteps = -3 }},
		{"optionType", func(p *ModelParameters) { p.OptionType = "Straddle" }},
		{"r", func(p *ModelParameters) { p.R = math.NaN() }},
		{"S0", func(p *ModelParameters) { p.S0 = math.Inf(1) }},
	}

	for _, tc := range cases {
		p := DefaultParameters()
		tc.mutate(&p)

		err := p.Validate()
		require.Error(t, err, tc.field)
		assert.True(t, errors.Is(err, ErrInvalidParameters))

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, tc.field, verr.Field)
	}
}

func TestValidate_AcceptsBoundaries(t *testing.T) {
	p := DefaultParameters()
	p.V0, p.Theta, p.Xi = 0, 0, 0
	p.Rho = -1
	p.NumPaths, p.TimeSteps = 1, 1
	p.R = -0.02
	assert.NoError(t, p.Validate())

	p.Rho = 1
	assert.NoError(t, p.Validate())
}

func TestParseOptionKind(t *testing.T) {
	for in, want := range map[string]OptionKind{
		"Call": Call, "call": Call, " C ": Call,
		"Put": Put, "PUT": Put, "p": Put,
	} {
		got, err := ParseOptionKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseOptionKind("straddle")
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestOptionKind_Payoff(t *testing.T) {
	assert.Equal(t, 10.0, Call.Payoff(110, 100))
	assert.Equal(t, 0.0, Call.Payoff(90, 100))
	assert.Equal(t, 10.0, Put.Payoff(90, 100))
	assert.Equal(t, 0.0, Put.Payoff(110, 100))
}

func TestWithMaturity_DoesNotMutate(t *testing.T) {
	p := DefaultParameters()
	q := p.WithMaturity(0.25)
	assert.Equal(t, 1.0, p.T)
	assert.Equal(t, 0.25, q.T)
}
