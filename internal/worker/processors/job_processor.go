package processors

import (
	"context"
	"errors"
	"fmt"

	"stocksync/internal/credentials"
	"stocksync/internal/logger"
	"stocksync/internal/mutation"
	"stocksync/internal/services/shopify"
	"stocksync/internal/worker/processors/validation"
)

// PermanentError wraps a job failure that a retry cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

type CredentialStore interface {
	Lookup(ctx context.Context, tenant string) (credentials.Bundle, error)
}

// WriterFactory builds the platform writer for a tenant's credentials.
type WriterFactory func(b credentials.Bundle) (mutation.Writer, error)

// ShopifyWriters is the production WriterFactory.
func ShopifyWriters(apiVersion string, logger *logger.Logger) WriterFactory {
	return func(b credentials.Bundle) (mutation.Writer, error) {
		if b.ShopDomain == "" || b.AccessToken == "" {
			return nil, fmt.Errorf("%w: shopify credentials for tenant %s", credentials.ErrMissingCredential, b.Tenant)
		}
		return shopify.NewClient(b.ShopDomain, b.AccessToken, apiVersion, logger), nil
	}
}

// JobProcessor applies queued mutation jobs.
type JobProcessor struct {
	credentials CredentialStore
	writers     WriterFactory
	validator   *validation.Validator
	logger      *logger.Logger
}

func NewJobProcessor(store CredentialStore, writers WriterFactory, logger *logger.Logger) *JobProcessor {
	return &JobProcessor{
		credentials: store,
		writers:     writers,
		validator:   validation.New(logger),
		logger:      logger,
	}
}

// Process applies one job. Failures that a retry cannot fix are returned as
// *PermanentError.
func (p *JobProcessor) Process(ctx context.Context, job mutation.Job) error {
	if err := p.validator.ValidateJob(job); err != nil {
		return &PermanentError{Err: err}
	}

	bundle, err := p.credentials.Lookup(ctx, job.Tenant)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) || errors.Is(err, credentials.ErrMissingCredential) {
			return &PermanentError{Err: err}
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	writer, err := p.writers(bundle)
	if err != nil {
		return &PermanentError{Err: err}
	}

	id, err := mutation.Apply(ctx, writer, job)
	if err != nil {
		var uerr shopify.UserErrors
		if errors.As(err, &uerr) || errors.Is(err, mutation.ErrInvalidRecord) {
			return &PermanentError{Err: err}
		}
		return err
	}

	p.logger.Info("Applied %s %s for %s (source %s, destination %s, run %s)",
		job.Operation, job.Entity, job.Tenant, job.SourceID, id, job.RunID)
	return nil
}
