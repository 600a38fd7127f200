package rpc

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"hestonq.com/pkg/logger"
)

// RequestIDKey metadata 中的请求 ID
const RequestIDKey = "x-request-id"

// NewGRPCServer 创建带日志和 panic 恢复拦截器的 gRPC server，并注册定价服务
func NewGRPCServer(srv PricingServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryRequestID(), UnaryLogging(), UnaryRecovery()))
	s := grpc.NewServer(opts...)
	RegisterPricingServer(s, srv)
	return s
}

// UnaryRequestID 从 metadata 取请求 ID，没有就生成一个
func UnaryRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		return handler(logger.ContextWithRequestID(ctx, id), req)
	}
}

// UnaryLogging 记录方法、状态码和耗时
func UnaryLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		args := []any{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("elapsed", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Info(ctx, "grpc request", args...)
		case codes.Internal, codes.Unknown:
			logger.Error(ctx, "grpc request", append(args, slog.Any("error", err))...)
		default:
			logger.Warn(ctx, "grpc request", append(args, slog.Any("error", err))...)
		}
		return resp, err
	}
}

// UnaryRecovery panic 转成 Internal
func UnaryRecovery() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "grpc handler panic",
					slog.String("method", info.FullMethod),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
