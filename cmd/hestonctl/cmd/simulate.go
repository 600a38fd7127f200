package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	natsx "hestonq.com/pkg/nats"
	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/risk/heston"
)

type simulateFlags struct {
	seed    uint64
	workers int
	full    bool
	timeout time.Duration

	// 非空时把请求发给远端 worker，不在本地计算
	natsURL string
	subject string
}

func newSimulateCmd(o *rootOptions) *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Price the option by Monte Carlo under the Heston model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := pricing.SimulationRequest{Params: o.params, SummaryOnly: !f.full}
			if cmd.Flags().Changed("seed") {
				seed := f.seed
				req.Seed = &seed
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			var (
				report *pricing.SimulationReport
				err    error
			)
			if f.natsURL != "" {
				report, err = simulateRemote(ctx, f, req)
			} else {
				svc := pricing.NewService(pricing.WithSimulatorOptions(heston.WithWorkers(f.workers)))
				report, err = svc.Simulate(ctx, req)
			}
			if err != nil {
				return err
			}

			if req.SummaryOnly {
				report.Paths = nil
				report.FinalPrices = nil
			}
			if o.format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd.OutOrStdout(), o, report)
		},
	}

	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "root seed; random when not set")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "parallel path blocks, 0 uses GOMAXPROCS")
	cmd.Flags().BoolVar(&f.full, "full", false, "include visualised paths and terminal prices in JSON output")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "give up after this long")
	cmd.Flags().StringVar(&f.natsURL, "nats", "", "send the request to a worker at this NATS url instead of computing locally")
	cmd.Flags().StringVar(&f.subject, "subject", "heston.simulate", "NATS request subject")
	return cmd
}

func simulateRemote(ctx context.Context, f *simulateFlags, req pricing.SimulationRequest) (*pricing.SimulationReport, error) {
	pub, err := natsx.NewPublisher(f.natsURL, "hestonctl")
	if err != nil {
		return nil, err
	}
	defer pub.Close()

	// 大结果超过 NATS 单条消息上限，远端只要摘要
	req.SummaryOnly = true
	var report pricing.SimulationReport
	if err := pub.Request(ctx, f.subject, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func printReport(w io.Writer, o *rootOptions, r *pricing.SimulationReport) error {
	p := o.params
	t := newTable(w)

	t.row("run id", r.RunID)
	t.row("seed", r.Seed)
	t.row("option", fmt.Sprintf("%s S0=%s K=%s T=%s", p.OptionType, round(p.S0, 4), round(p.K, 4), round(p.T, 4)))
	t.row("paths x steps", fmt.Sprintf("%s x %d", thousands(int64(p.NumPaths)), p.TimeSteps))
	t.row("")
	t.row("price", round(r.Price, 4))
	t.row("std error", round(r.StandardError, 4))
	t.row("95% interval", fmt.Sprintf("[%s, %s]",
		round(r.Price-1.96*r.StandardError, 4), round(r.Price+1.96*r.StandardError, 4)))
	t.row("black-scholes", round(r.BlackScholesPrice, 4))
	if r.ImpliedVolatility != nil {
		t.row("implied vol", round(*r.ImpliedVolatility, 4))
	} else {
		t.row("implied vol", "n/a")
	}
	t.row("elapsed ms", round(r.ExecutionTime, 1))
	t.row("")
	t.row("delta", round(r.Greeks.Delta, 4))
	t.row("gamma", round(r.Greeks.Gamma, 6))
	t.row("vega", round(r.Greeks.Vega, 4))
	t.row("theta", round(r.Greeks.Theta, 4))
	t.row("rho", round(r.Greeks.Rho, 4))
	return t.flush()
}
