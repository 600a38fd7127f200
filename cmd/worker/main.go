package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hestonq.com/pkg/app"
	"hestonq.com/pkg/config"
	"hestonq.com/pkg/kafka"
	"hestonq.com/pkg/logger"
	natsx "hestonq.com/pkg/nats"
	"hestonq.com/pkg/pricing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:          "heston-worker",
		Short:        "Consume simulation requests from NATS and Kafka",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath, metricsAddr)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9100", "address for the prometheus endpoint, empty to disable")
	return cmd
}

func run(ctx context.Context, cfgPath, metricsAddr string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if !cfg.NATS.Enabled && !cfg.Kafka.Enabled {
		return errors.New("worker needs nats or kafka enabled")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	w := pricing.NewWorker(a.Service)

	if cfg.NATS.Enabled {
		sub, err := natsx.NewSubscriber(cfg.NATS.URL, cfg.ServiceName+"-worker")
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer sub.Close()

		if err := sub.SubscribeReply(cfg.NATS.RequestSubject, cfg.NATS.QueueGroup, w.HandleReply); err != nil {
			return fmt.Errorf("subscribe %s: %w", cfg.NATS.RequestSubject, err)
		}
		logger.Info(ctx, "nats worker subscribed",
			slog.String("subject", cfg.NATS.RequestSubject),
			slog.String("queue", cfg.NATS.QueueGroup))
	}

	if cfg.Kafka.Enabled {
		consumer, err := kafka.NewConsumer(
			kafka.DefaultConsumerConfig(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{cfg.Kafka.RequestTopic}),
			w.HandleRecord)
		if err != nil {
			return err
		}
		consumer.Start(ctx)
		defer consumer.Stop()
		logger.Info(ctx, "kafka worker consuming",
			slog.String("topic", cfg.Kafka.RequestTopic),
			slog.String("group", cfg.Kafka.GroupID))
	}

	if metricsAddr != "" && cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, a.Metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "metrics server", slog.Any("error", err))
			}
		}()
		defer srv.Close()
	}

	<-ctx.Done()
	logger.Info(context.Background(), "worker stopping")
	return nil
}
