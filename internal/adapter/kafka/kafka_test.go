package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/dadoscon/municipal-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	batches [][]kafkago.Message
	failOn  int
	closed  bool
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return errors.New("broker unavailable")
	}
	r.batches = append(r.batches, msgs)
	return nil
}

func (r *recordingWriter) Close() error {
	r.closed = true
	return nil
}

func testRecords(n int) []domain.ContractRecord {
	recs := make([]domain.ContractRecord, n)
	for i := range recs {
		recs[i] = domain.ContractRecord{Ticket: "CON-" + string(rune('A'+i)), UF: "MG", Municipality: "Ouro Branco"}
	}
	return recs
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rec := domain.ContractRecord{
		Ticket:       "CON-1",
		UF:           "MG",
		Municipality: "Ouro Branco",
		Competitor:   "Acme",
		ProcessedAt:  now,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("CON-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"municipality":"Ouro Branco"`)
	assert.Contains(t, string(msg.Value), `"competitor":"Acme"`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "uf", msg.Headers[0].Key)
	assert.Equal(t, []byte("MG"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestPublishContracts_Batches(t *testing.T) {
	rw := &recordingWriter{}
	w := &Writer{writer: rw, batchSize: 2, logger: discardLogger()}

	n, err := w.PublishContracts(context.Background(), testRecords(5))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	require.Len(t, rw.batches, 3)
	assert.Len(t, rw.batches[0], 2)
	assert.Len(t, rw.batches[2], 1)
	assert.Equal(t, []byte("CON-E"), rw.batches[2][0].Key)
}

func TestPublishContracts_Empty(t *testing.T) {
	rw := &recordingWriter{}
	w := &Writer{writer: rw, batchSize: 2, logger: discardLogger()}

	n, err := w.PublishContracts(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rw.batches)
}

func TestPublishContracts_PartialFailure(t *testing.T) {
	rw := &recordingWriter{failOn: 2}
	w := &Writer{writer: rw, batchSize: 2, logger: discardLogger()}

	n, err := w.PublishContracts(context.Background(), testRecords(5))
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestNewWriter(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaContractsTopic: "municipal-contracts", BatchSize: 10}
	w := NewWriter(cfg, discardLogger())

	kw, ok := w.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "municipal-contracts", kw.Topic)
	assert.Equal(t, 10, w.batchSize)
	require.NoError(t, w.Close())
}
