package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

func newTestCache(t *testing.T) *Thermo {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))
}

func TestKeyIsOrderInsensitive(t *testing.T) {
	a := Key([]string{"Ti", "Al", "V"}, 1000, 101325)
	b := Key([]string{"V", "Ti", "Al"}, 1000, 101325)
	assert.Equal(t, a, b)

	c := Key([]string{"Ti", "Al", "V"}, 1100, 101325)
	assert.NotEqual(t, a, c)
}

func TestReadThrough(t *testing.T) {
	tc := newTestCache(t)
	ctx := context.Background()
	key := Key([]string{"Ti", "Al"}, 1000, 101325)

	_, ok := tc.Get(ctx, key)
	assert.False(t, ok)

	result := &domain.ThermoResult{
		Elements: []string{"Ti", "Al"}, TemperatureK: 1000, PressurePa: 101325,
		StablePhases: []domain.PhaseFraction{
			{Phase: "ALPHA", Fraction: 0.85},
			{Phase: "BETA", Fraction: 0.15},
		},
		IsStable: true,
	}
	tc.Put(ctx, key, result)

	cached, ok := tc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, result, cached)
}

func TestErroredResultsAreNotCached(t *testing.T) {
	tc := newTestCache(t)
	ctx := context.Background()
	key := Key([]string{"Ti"}, 900, 101325)

	tc.Put(ctx, key, &domain.ThermoResult{IsStable: false, Error: "solver outage"})
	_, ok := tc.Get(ctx, key)
	assert.False(t, ok)
}

func TestBackendOutageReadsAsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	tc := NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))
	mr.Close()

	_, ok := tc.Get(context.Background(), "aeroforge:thermo:Ti:1000.0:101325")
	assert.False(t, ok)
}
