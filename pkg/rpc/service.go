// Package rpc 定价服务的 gRPC 接入层。
//
// 没有 .proto 生成代码：服务描述手写，消息走 JSON codec，
// 所以 HTTP 和 gRPC 的请求/响应结构完全一致。
package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/options"
)

// ServiceName 完整服务名
const ServiceName = "heston.v1.PricingService"

// TermStructureResponse 期限结构响应，gRPC 消息必须是结构体
type TermStructureResponse struct {
	Points []options.TermPoint `json:"points"`
}

// PricingServer 服务端接口
type PricingServer interface {
	Simulate(ctx context.Context, req *pricing.SimulationRequest) (*pricing.SimulationReport, error)
	EstimateResources(ctx context.Context, p *risk.ModelParameters) (*quantum.ResourceEstimate, error)
	Sensitivities(ctx context.Context, p *risk.ModelParameters) (*options.SensitivityBundle, error)
	TermStructure(ctx context.Context, p *risk.ModelParameters) (*TermStructureResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PricingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Simulate", PricingServer.Simulate),
		unary("EstimateResources", PricingServer.EstimateResources),
		unary("Sensitivities", PricingServer.Sensitivities),
		unary("TermStructure", PricingServer.TermStructure),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "heston/v1/pricing.proto",
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// unary 把一个普通方法包装成 grpc.MethodDesc
func unary[Req, Resp any](name string, call func(PricingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PricingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PricingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RegisterPricingServer 注册到 gRPC server
func RegisterPricingServer(s grpc.ServiceRegistrar, srv PricingServer) {
	s.RegisterService(&serviceDesc, srv)
}

// =============================================================================
// Server 实现
// =============================================================================

// Server 把 pricing.Pricer 适配成 PricingServer
type Server struct {
	pricer pricing.Pricer
}

// NewServer 创建服务实现
func NewServer(pricer pricing.Pricer) *Server {
	return &Server{pricer: pricer}
}

var _ PricingServer = (*Server)(nil)

// Simulate 蒙特卡洛定价
func (s *Server) Simulate(ctx context.Context, req *pricing.SimulationRequest) (*pricing.SimulationReport, error) {
	report, err := s.pricer.Simulate(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.SummaryOnly {
		report.Paths = nil
		report.FinalPrices = nil
	}
	return report, nil
}

// EstimateResources 量子资源估算
func (s *Server) EstimateResources(ctx context.Context, p *risk.ModelParameters) (*quantum.ResourceEstimate, error) {
	est, err := s.pricer.EstimateResources(ctx, *p)
	if err != nil {
		return nil, toStatus(err)
	}
	return &est, nil
}

// Sensitivities Greeks
func (s *Server) Sensitivities(ctx context.Context, p *risk.ModelParameters) (*options.SensitivityBundle, error) {
	greeks, err := s.pricer.Sensitivities(ctx, *p)
	if err != nil {
		return nil, toStatus(err)
	}
	return &greeks, nil
}

// TermStructure Greeks 期限结构
func (s *Server) TermStructure(ctx context.Context, p *risk.ModelParameters) (*TermStructureResponse, error) {
	points, err := s.pricer.TermStructure(ctx, *p)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TermStructureResponse{Points: points}, nil
}

// toStatus 业务错误映射为 gRPC 状态码
func toStatus(err error) error {
	var verr *risk.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.Is(err, pricing.ErrLimitExceeded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
