package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/dadoscon/municipal-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces cleaned contracts to a Kafka topic.
// It implements pipeline.ContractPublisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a Kafka producer for the configured contracts topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaContractsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

// PublishContracts serializes and publishes contracts in batches of the
// configured size. Records keyed by ticket land on the same partition.
func (w *Writer) PublishContracts(ctx context.Context, recs []domain.ContractRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	size := w.batchSize
	if size <= 0 {
		size = len(recs)
	}

	published := 0
	for start := 0; start < len(recs); start += size {
		end := min(start+size, len(recs))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(recs[i])
			if err != nil {
				return published, err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return published, fmt.Errorf("write contracts batch: %w", err)
		}
		published += len(msgs)
		w.logger.Debug("contracts batch published", "size", len(msgs))
	}
	return published, nil
}

// Close flushes pending messages and closes the underlying writer.
func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ContractRecord into a Kafka message.
func serializeToMessage(rec domain.ContractRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize contract: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Ticket),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "uf", Value: []byte(rec.UF)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
