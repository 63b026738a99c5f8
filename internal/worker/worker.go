package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/logger"
	"stocksync/internal/metrics"
	"stocksync/internal/mutation"
	"stocksync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// DefaultMaxAttempts is how often a job is tried before it is dropped.
const DefaultMaxAttempts = 5

// Reader is the consumer side of the mutation topic. *kafka.Reader implements
// it.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type JobHandler interface {
	Process(ctx context.Context, job mutation.Job) error
}

type Worker struct {
	logger      *logger.Logger
	reader      Reader
	retries     mutation.Enqueuer
	processor   JobHandler
	maxAttempts int
}

// New consumes the mutation topic with the given group. Failed jobs are
// re-published through retries.
func New(cfg *config.Config, processor JobHandler, retries mutation.Enqueuer, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers(),
		GroupID:        cfg.KafkaGroupID,
		Topic:          cfg.KafkaMutationTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: 0,
	})
	return NewWithReader(reader, processor, retries, logger)
}

func NewWithReader(reader Reader, processor JobHandler, retries mutation.Enqueuer, logger *logger.Logger) *Worker {
	return &Worker{
		logger:      logger,
		reader:      reader,
		retries:     retries,
		processor:   processor,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Start consumes jobs until ctx is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started, listening for mutation jobs...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		w.handle(ctx, message)

		if err := w.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

// handle processes one message. A failed job is re-published with its
// attempt count raised before the original offset is committed.
func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	w.logger.Debug("Received message at offset %d", message.Offset)

	var job mutation.Job
	if err := json.Unmarshal(message.Value, &job); err != nil {
		w.logger.Error("Failed to parse job at offset %d: %v", message.Offset, err)
		metrics.WorkerJobs.WithLabelValues("unknown", "invalid").Inc()
		return
	}
	log := w.logger.With("job_id", job.ID, "tenant", job.Tenant, "run_id", job.RunID)

	err := w.processor.Process(ctx, job)
	if err == nil {
		metrics.WorkerJobs.WithLabelValues(job.Entity, "applied").Inc()
		return
	}

	var permanent *processors.PermanentError
	if errors.As(err, &permanent) {
		log.Error("Dropping %s %s job for %s: %v", job.Operation, job.Entity, job.SourceID, err)
		metrics.WorkerJobs.WithLabelValues(job.Entity, "rejected").Inc()
		return
	}

	if job.Attempt+1 >= w.maxAttempts {
		log.Error("Dropping %s %s job for %s after %d attempts: %v", job.Operation, job.Entity, job.SourceID, job.Attempt+1, err)
		metrics.WorkerJobs.WithLabelValues(job.Entity, "dropped").Inc()
		return
	}

	job.Attempt++
	if perr := w.retries.Enqueue(ctx, job); perr != nil {
		log.Error("Failed to re-publish job for %s: %v (original error: %v)", job.SourceID, perr, err)
		metrics.WorkerJobs.WithLabelValues(job.Entity, "dropped").Inc()
		return
	}
	log.Warn("Job for %s failed, retrying as attempt %d: %v", job.SourceID, job.Attempt+1, err)
	metrics.WorkerJobs.WithLabelValues(job.Entity, "retried").Inc()
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}
