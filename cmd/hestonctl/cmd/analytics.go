package cmd

import (
	"github.com/spf13/cobra"

	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk/options"
)

func newResourcesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Estimate quantum amplitude estimation resources for the same accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := quantum.EstimateResources(o.params)
			if err != nil {
				return err
			}
			if o.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), est)
			}

			t := newTable(cmd.OutOrStdout())
			t.row("target error", round(est.EstimatedQuantumError, 6))
			t.row("precision bits", est.PrecisionBits)
			t.row("grover iterations", thousands(est.GroverIterations))
			t.row("speedup", round(est.TheoreticalSpeedup, 2))
			t.row("qubits", thousands(est.EstimatedQubits))
			t.row("  state", est.QubitBreakdown.State)
			t.row("  ancilla", est.QubitBreakdown.Ancilla)
			t.row("  qae", est.QubitBreakdown.QAE)
			t.row("T gates", thousands(est.TGateCount))
			t.row("CNOT gates", thousands(est.CNOTCount))
			t.row("oracle depth", thousands(est.OracleDepth))
			t.row("circuit depth", thousands(est.CircuitDepth))
			return t.flush()
		},
	}
}

func newGreeksCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "greeks",
		Short: "Closed-form sensitivities at vol = sqrt(theta)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := options.Sensitivities(o.params)
			if err != nil {
				return err
			}
			if o.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), g)
			}

			t := newTable(cmd.OutOrStdout())
			t.row("delta", round(g.Delta, 6))
			t.row("gamma", round(g.Gamma, 6))
			t.row("vega", round(g.Vega, 6))
			t.row("theta", round(g.Theta, 6))
			t.row("rho", round(g.Rho, 6))
			return t.flush()
		},
	}
}

func newTermStructureCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "term-structure",
		Short: "Delta, gamma and vega from 0.01y out to maturity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, err := options.TermStructure(o.params)
			if err != nil {
				return err
			}
			if o.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), points)
			}

			t := newTable(cmd.OutOrStdout())
			t.row("time", "delta", "gamma x1000", "vega")
			for _, pt := range points {
				t.row(round(pt.Time, 2), round(pt.Delta, 4), round(pt.Gamma, 4), round(pt.Vega, 4))
			}
			return t.flush()
		},
	}
}
