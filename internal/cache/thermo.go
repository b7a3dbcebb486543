// Package cache provides the optional cross-run memoization of
// thermodynamic results. The cache is read-through: a miss falls straight
// to the solver and never waits on another run's computation. Failures
// are silent; the cache is an optimization, not a dependency.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/pkg/domain"
)

// Key derives the deterministic cache key for an equilibrium query.
// Element order matters chemically upstream, but identical sets at the
// same temperature and pressure are the same computation, so the key
// sorts a copy.
func Key(elements []string, temperatureK, pressurePa float64) string {
	sorted := append([]string(nil), elements...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return fmt.Sprintf("aeroforge:thermo:%s:%.1f:%.0f", strings.Join(sorted, "-"), temperatureK, pressurePa)
}

// Thermo is a Redis-backed ThermoCache.
type Thermo struct {
	client *backend.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the cache.
type Option func(*Thermo)

// WithTTL sets the entry expiration. Zero keeps entries forever.
func WithTTL(ttl time.Duration) Option {
	return func(t *Thermo) { t.ttl = ttl }
}

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Thermo) { t.logger = logger }
}

// New creates a cache over an address.
func New(addr, password string, db int, opts ...Option) *Thermo {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Thermo {
	t := &Thermo{
		client: client,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get looks up a memoized result. Any backend error reads as a miss.
func (t *Thermo) Get(ctx context.Context, key string) (*domain.ThermoResult, bool) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != backend.Nil {
			t.logger.DebugContext(ctx, "thermo cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result domain.ThermoResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.logger.WarnContext(ctx, "thermo cache entry corrupt, ignoring", "key", key, "error", err)
		return nil, false
	}
	return &result, true
}

// Put stores a result. Errored results are not cached; an outage is not a
// property of the element set.
func (t *Thermo) Put(ctx context.Context, key string, result *domain.ThermoResult) {
	if result == nil || result.Error != "" {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := t.client.Set(ctx, key, data, t.ttl).Err(); err != nil {
		t.logger.DebugContext(ctx, "thermo cache store failed", "key", key, "error", err)
	}
}
