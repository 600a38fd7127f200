package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/kafka"
	"hestonq.com/pkg/logger"
)

// Worker 处理队列里的模拟请求：NATS 请求/应答和 Kafka 消费共用同一套逻辑
type Worker struct {
	svc *Service
}

// NewWorker 创建 worker
func NewWorker(svc *Service) *Worker {
	return &Worker{svc: svc}
}

// HandleReply NATS 请求/应答，返回 JSON 编码的 SimulationReport
func (w *Worker) HandleReply(ctx context.Context, data []byte) ([]byte, error) {
	req, err := decodeRequest(data)
	if err != nil {
		return nil, err
	}
	if req.RequestID != "" {
		ctx = logger.ContextWithRequestID(ctx, req.RequestID)
	}

	report, err := w.svc.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.SummaryOnly {
		report.Paths = nil
		report.FinalPrices = nil
	}
	return sonnet.Marshal(report)
}

// HandleRecord Kafka 请求，结果只通过完成事件对外发布
func (w *Worker) HandleRecord(ctx context.Context, rec kafka.Record) error {
	req, err := decodeRequest(rec.Value)
	if err != nil {
		return err
	}
	if req.RequestID == "" {
		req.RequestID = string(rec.Key)
	}
	ctx = logger.ContextWithRequestID(ctx, req.RequestID)

	report, err := w.svc.Simulate(ctx, req)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "kafka simulation request done",
		slog.String("run_id", report.RunID),
		slog.Int64("offset", rec.Offset))
	return nil
}

func decodeRequest(data []byte) (SimulationRequest, error) {
	var req SimulationRequest
	if err := sonnet.Unmarshal(data, &req); err != nil {
		return SimulationRequest{}, fmt.Errorf("decode simulation request: %w", err)
	}
	return req, nil
}
