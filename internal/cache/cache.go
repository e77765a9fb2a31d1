// Package cache holds the computed stats summary between reloads. The
// summary is a full recompute over all sales, so terminals with a redis
// nearby skip the recompute on every dashboard poll; everyone else runs
// with the noop cache and recomputes each time.
package cache

import (
	"context"

	"tiendafacil/terminal/internal/domain"
)

type StatsCache interface {
	// GetSummary returns the cached summary and whether it was present.
	GetSummary(ctx context.Context) (*domain.StatsSummary, bool)
	SetSummary(ctx context.Context, summary domain.StatsSummary)
	// Invalidate drops the cached summary after any sale or product
	// mutation so the next read recomputes.
	Invalidate(ctx context.Context)
	Close() error
}

// NoopCache is the fallback when no redis address is configured.
type NoopCache struct{}

func (NoopCache) GetSummary(context.Context) (*domain.StatsSummary, bool) { return nil, false }

func (NoopCache) SetSummary(context.Context, domain.StatsSummary) {}

func (NoopCache) Invalidate(context.Context) {}

func (NoopCache) Close() error { return nil }
