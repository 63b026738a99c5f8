package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"stocksync/internal/config"
	"stocksync/internal/mutation"
)

// MessageWriter is the producer side of the mutation topic. *kafka.Writer
// implements it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes mutation jobs keyed by tenant, so one tenant's jobs stay
// on one partition.
type Producer struct {
	writer MessageWriter
}

func NewProducer(cfg *config.Config) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers()...),
		Topic:        cfg.KafkaMutationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	})
}

func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

func (p *Producer) Enqueue(ctx context.Context, jobs ...mutation.Job) error {
	msgs := make([]kafka.Message, 0, len(jobs))
	for _, job := range jobs {
		body, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(job.Tenant),
			Value: body,
			Headers: []kafka.Header{
				{Key: "entity", Value: []byte(job.Entity)},
				{Key: "operation", Value: []byte(job.Operation)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d jobs: %w", len(msgs), err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
