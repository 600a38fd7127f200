package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"hestonq.com/pkg/api"
	"hestonq.com/pkg/app"
	"hestonq.com/pkg/config"
	"hestonq.com/pkg/logger"
	"hestonq.com/pkg/rpc"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:          "heston-server",
		Short:        "Heston option pricing HTTP + gRPC server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config file (defaults + HESTON_* env when empty)")
	return cmd
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn(context.Background(), "close resources", slog.Any("error", err))
		}
	}()

	// ===============================
	// HTTP
	// ===============================
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	apiCfg := api.Config{RequestTimeout: cfg.HTTP.RequestTimeout, Observer: a.Metrics}
	if cfg.Metrics.Enabled {
		apiCfg.MetricsHandler = a.Metrics.Handler()
		apiCfg.MetricsPath = cfg.Metrics.Path
	}
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api.NewRouter(a.Service, apiCfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// ===============================
	// gRPC
	// ===============================
	var grpcOpts []grpc.ServerOption
	if cfg.GRPC.MaxConcurrentStreams > 0 {
		grpcOpts = append(grpcOpts, grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams))
	}
	grpcSrv := rpc.NewGRPCServer(rpc.NewServer(a.Service), grpcOpts...)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr())
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "http server listening", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info(gctx, "grpc server listening", slog.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down", slog.String("service", cfg.ServiceName))

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "server exited", slog.Any("error", err))
		return err
	}
	logger.Info(context.Background(), "server stopped")
	return nil
}
