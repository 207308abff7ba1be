package main

import (
	"context"
	"log/slog"

	"github.com/hrygo/eventsense/internal/observability"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/ai"
	"github.com/hrygo/eventsense/plugin/ai/router"
	"github.com/hrygo/eventsense/store/cache"
)

// dependencies are the long-lived collaborators of one process.
type dependencies struct {
	parser  *router.HybridParser
	store   *cache.EventStore
	metrics *observability.Metrics
}

// newDependencies builds the provider, the cache tiers and the parser from p.
// A pattern or accept-policy compile failure aborts startup.
func newDependencies(ctx context.Context, p *profile.Profile, logger *slog.Logger) (*dependencies, error) {
	provider, err := ai.NewProvider(ai.NewConfigFromProfile(p), logger)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, p.Cache, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	parser, err := router.NewHybridParser(router.NewConfigFromProfile(p),
		router.WithProvider(provider),
		router.WithStore(store),
		router.WithMetrics(metrics),
		router.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &dependencies{parser: parser, store: store, metrics: metrics}, nil
}

func (d *dependencies) Close() {
	if err := d.store.Close(); err != nil {
		slog.Warn("failed to close cache", "error", err)
	}
}
