package orchestrator

import (
	"stocksync/internal/config"
	"stocksync/internal/credentials"
	"stocksync/internal/logger"
	"stocksync/internal/mutation"
	"stocksync/internal/services/shopify"
	"stocksync/internal/services/unleashed"
)

// PlatformClients builds the Unleashed and Shopify clients for a tenant.
func PlatformClients(cfg *config.Config, logger *logger.Logger) ClientFactory {
	return func(b credentials.Bundle) (*Clients, error) {
		source := unleashed.NewClient(cfg.UnleashedBaseURL, b.UnleashedAPIID, b.UnleashedAPIKey, cfg.UnleashedPageSize, logger)
		destination := shopify.NewClient(b.ShopDomain, b.AccessToken, cfg.ShopifyAPIVersion, logger)
		return &Clients{
			Source:      unleashed.NewProvider(source, logger),
			Destination: destination,
			Writer:      destination,
			Bulk:        destination,
		}, nil
	}
}

// OptionsFromConfig maps the sync settings onto orchestrator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mutation: mutation.Options{
			Strategy:      mutation.Strategy(cfg.Sync.Strategy),
			BatchSize:     cfg.Sync.BatchSize,
			BatchDelay:    cfg.Sync.BatchDelay,
			BulkThreshold: cfg.Sync.BulkThreshold,
			Bulk: shopify.BulkOptions{
				PollInterval: cfg.Sync.BulkPollInterval,
				Timeout:      cfg.Sync.BulkTimeout,
			},
		},
		LockTTL: cfg.Sync.LockTTL,
	}
}
