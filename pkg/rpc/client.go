package rpc

import (
	"context"

	"google.golang.org/grpc"

	"hestonq.com/pkg/pricing"
	"hestonq.com/pkg/quantum"
	"hestonq.com/pkg/risk"
	"hestonq.com/pkg/risk/options"
)

// Client PricingService 客户端，所有调用都使用 JSON codec
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient 基于已建立的连接创建客户端
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Simulate(ctx context.Context, req *pricing.SimulationRequest, opts ...grpc.CallOption) (*pricing.SimulationReport, error) {
	return invoke[pricing.SimulationReport](ctx, c.cc, "Simulate", req, opts)
}

func (c *Client) EstimateResources(ctx context.Context, p *risk.ModelParameters, opts ...grpc.CallOption) (*quantum.ResourceEstimate, error) {
	return invoke[quantum.ResourceEstimate](ctx, c.cc, "EstimateResources", p, opts)
}

func (c *Client) Sensitivities(ctx context.Context, p *risk.ModelParameters, opts ...grpc.CallOption) (*options.SensitivityBundle, error) {
	return invoke[options.SensitivityBundle](ctx, c.cc, "Sensitivities", p, opts)
}

func (c *Client) TermStructure(ctx context.Context, p *risk.ModelParameters, opts ...grpc.CallOption) (*TermStructureResponse, error) {
	return invoke[TermStructureResponse](ctx, c.cc, "TermStructure", p, opts)
}
