// Package cmd hestonctl 的子命令
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hestonq.com/pkg/logger"
	"hestonq.com/pkg/risk"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// rootOptions 所有子命令共用的模型参数和输出选项
type rootOptions struct {
	params     risk.ModelParameters
	optionType string
	format     string
	verbose    bool
}

// NewRootCmd 每次调用返回一棵新的命令树，测试里可以反复执行
func NewRootCmd() *cobra.Command {
	o := &rootOptions{params: risk.DefaultParameters(), optionType: "call"}

	root := &cobra.Command{
		Use:   "hestonctl",
		Short: "Heston Monte Carlo pricer and quantum resource estimator",
		Long: `hestonctl prices European options under the Heston stochastic volatility
model, reports closed-form sensitivities, and estimates the resources a
quantum amplitude estimation circuit would need for the same accuracy.`,
		Example: `  hestonctl simulate --paths 200000 --seed 42
  hestonctl simulate --type put --strike 110 --format json
  hestonctl resources --paths 1000 --steps 50
  hestonctl term-structure --maturity 2`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			level := "warn"
			if o.verbose {
				level = "debug"
			}
			if err := logger.Init(logger.Config{Level: level, Format: "text", Output: "stderr"}); err != nil {
				return err
			}

			kind, err := risk.ParseOptionKind(o.optionType)
			if err != nil {
				return err
			}
			o.params.OptionType = kind

			if o.format != formatTable && o.format != formatJSON {
				return fmt.Errorf("unknown format %q (want %s or %s)", o.format, formatTable, formatJSON)
			}
			return nil
		},
	}

	p := &o.params
	f := root.PersistentFlags()
	f.Float64Var(&p.S0, "s0", p.S0, "spot price")
	f.Float64VarP(&p.K, "strike", "k", p.K, "strike price")
	f.Float64VarP(&p.R, "rate", "r", p.R, "risk-free rate, continuously compounded")
	f.Float64VarP(&p.T, "maturity", "t", p.T, "time to maturity in years")
	f.Float64Var(&p.V0, "v0", p.V0, "initial variance")
	f.Float64Var(&p.Theta, "theta", p.Theta, "long-run variance")
	f.Float64Var(&p.Kappa, "kappa", p.Kappa, "mean reversion speed")
	f.Float64Var(&p.Xi, "xi", p.Xi, "volatility of variance")
	f.Float64Var(&p.Rho, "rho", p.Rho, "spot/variance correlation")
	f.IntVarP(&p.NumPaths, "paths", "n", p.NumPaths, "number of Monte Carlo paths")
	f.IntVarP(&p.TimeSteps, "steps", "m", p.TimeSteps, "time steps per path")
	f.StringVar(&o.optionType, "type", o.optionType, "option type: call or put")
	f.StringVarP(&o.format, "format", "f", formatTable, "output format: table or json")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newSimulateCmd(o),
		newResourcesCmd(o),
		newGreeksCmd(o),
		newTermStructureCmd(o),
	)
	return root
}

// Execute 运行 CLI
func Execute() error {
	return NewRootCmd().Execute()
}
