package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"hestonq.com/pkg/kafka"
	"hestonq.com/pkg/risk"
)

func TestWorker_HandleReply(t *testing.T) {
	w := NewWorker(NewService(WithIDGenerator(fixedIDs{id: "run-7"})))

	req := smallRequest(5)
	req.SummaryOnly = true
	body, err := sonnet.Marshal(req)
	require.NoError(t, err)

	out, err := w.HandleReply(context.Background(), body)
	require.NoError(t, err)

	var report SimulationReport
	require.NoError(t, sonnet.Unmarshal(out, &report))
	assert.Equal(t, "run-7", report.RunID)
	assert.Equal(t, uint64(5), report.Seed)
	assert.Greater(t, report.Price, 0.0)
	assert.Empty(t, report.FinalPrices)
	assert.Empty(t, report.Paths)
}

func TestWorker_HandleReply_InvalidInput(t *testing.T) {
	w := NewWorker(NewService())

	_, err := w.HandleReply(context.Background(), []byte(`{"params":`))
	require.Error(t, err)

	req := smallRequest(1)
	req.Params.Rho = 2
	body, err := sonnet.Marshal(req)
	require.NoError(t, err)
	_, err = w.HandleReply(context.Background(), body)
	assert.ErrorIs(t, err, risk.ErrInvalidParameters)
}

func TestWorker_HandleRecord_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	w := NewWorker(NewService(WithPublisher(pub)))

	req := smallRequest(8)
	req.RequestID = ""
	body, err := sonnet.Marshal(req)
	require.NoError(t, err)

	err = w.HandleRecord(context.Background(), kafka.Record{
		Topic: "heston.simulation.requests",
		Key:   []byte("order-77"),
		Value: body,
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "order-77", pub.events[0].RequestID)
	assert.Equal(t, uint64(8), pub.events[0].Seed)
}
