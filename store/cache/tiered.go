// Package cache stores parsed events keyed by the hash of their normalized
// input text, across up to three tiers:
//   - L1: in-process LRU (always on)
//   - L2: Redis (when cache.redis_addr is set)
//   - L3: SQLite or PostgreSQL (when cache.driver is set)
//
// Reads walk the tiers in order and promote a hit into the faster tiers
// above it. Writes go to every tier.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	exerrors "github.com/hrygo/eventsense/internal/errors"
	"github.com/hrygo/eventsense/internal/profile"
	"github.com/hrygo/eventsense/plugin/extract/event"
	"github.com/hrygo/eventsense/store/db"
)

// DefaultTTL is how long a parsed event stays cached.
const DefaultTTL = 24 * time.Hour

// Tier is one storage level of the cache.
type Tier interface {
	Name() string
	// Get returns the stored bytes; a miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// EventStore is the tiered parsed-event cache. It is safe for concurrent
// use; simultaneous writes of one key resolve last-writer-wins in each tier.
type EventStore struct {
	tiers  []Tier
	ttl    time.Duration
	logger *slog.Logger
}

// NewEventStore creates a store over tiers, fastest first.
func NewEventStore(ttl time.Duration, logger *slog.Logger, tiers ...Tier) *EventStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStore{tiers: tiers, ttl: ttl, logger: logger}
}

// Open builds the tiers enabled by cfg. The memory tier is always present.
func Open(ctx context.Context, cfg profile.CacheConfig, logger *slog.Logger) (*EventStore, error) {
	tiers := []Tier{NewMemoryTier(cfg.Capacity, cfg.TTL)}

	if cfg.RedisAddr != "" {
		r, err := NewRedisTier(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			closeTiers(tiers)
			return nil, errors.Wrap(err, "failed to open redis cache tier")
		}
		tiers = append(tiers, r)
	}

	if cfg.Driver != "" {
		conn, dialect, err := db.Open(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			closeTiers(tiers)
			return nil, errors.Wrap(err, "failed to open sql cache tier")
		}
		s, err := NewSQLTier(ctx, conn, dialect)
		if err != nil {
			conn.Close()
			closeTiers(tiers)
			return nil, err
		}
		tiers = append(tiers, s)
	}

	return NewEventStore(cfg.TTL, logger, tiers...), nil
}

// Tiers returns the tier names, fastest first.
func (s *EventStore) Tiers() []string {
	names := make([]string, len(s.tiers))
	for i, t := range s.tiers {
		names[i] = t.Name()
	}
	return names
}

// Get returns the cached event for key with CacheHit set, or nil on a miss.
// A tier failure is skipped; it is returned as COLLABORATOR_UNAVAILABLE only
// when no other tier produced a hit.
func (s *EventStore) Get(ctx context.Context, key string) (*event.ParsedEvent, error) {
	var firstErr error
	for i, t := range s.tiers {
		data, ok, err := t.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache tier read failed", "tier", t.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			continue
		}

		ev := &event.ParsedEvent{}
		if err := json.Unmarshal(data, ev); err != nil {
			s.logger.Warn("dropping undecodable cache entry", "tier", t.Name(), "error", err)
			_ = t.Delete(ctx, key)
			continue
		}
		s.promote(ctx, key, data, i)
		ev.CacheHit = true
		return ev, nil
	}
	if firstErr != nil {
		return nil, exerrors.CollaboratorUnavailable("cache", firstErr)
	}
	return nil, nil
}

// promote copies a hit found in tier idx into every faster tier.
func (s *EventStore) promote(ctx context.Context, key string, data []byte, idx int) {
	for _, t := range s.tiers[:idx] {
		if err := t.Set(ctx, key, data, s.ttl); err != nil {
			s.logger.Warn("cache promotion failed", "tier", t.Name(), "error", err)
		}
	}
}

// Put stores ev under key in every tier. A non-positive ttl uses the store
// TTL. The stored copy never carries CacheHit.
func (s *EventStore) Put(ctx context.Context, key string, ev *event.ParsedEvent, ttl time.Duration) error {
	if ev == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	stored := ev.Clone()
	stored.CacheHit = false
	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "failed to encode parsed event")
	}

	var firstErr error
	for _, t := range s.tiers {
		if err := t.Set(ctx, key, data, ttl); err != nil {
			s.logger.Warn("cache tier write failed", "tier", t.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return exerrors.CollaboratorUnavailable("cache", firstErr)
	}
	return nil
}

// Delete removes key from every tier.
func (s *EventStore) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, t := range s.tiers {
		if err := t.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every tier.
func (s *EventStore) Close() error {
	return closeTiers(s.tiers)
}

func closeTiers(tiers []Tier) error {
	var errs []error
	for _, t := range tiers {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("multiple errors: %v", errs)
	}
	return nil
}
