// Package ports declares the narrow interfaces the orchestration core
// depends on. Collaborator internals (reasoning, search, solving,
// synthesis) live behind these contracts; adapters under
// internal/adapters implement them.
package ports

import (
	"context"

	"github.com/aeroforge/aeroforge/pkg/domain"
)

// Searcher is the hybrid keyword+vector literature search collaborator.
// Results come back pre-ranked descending by relevance score.
type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

// Reasoner is the natural-language reasoning collaborator. Depth selects
// the latency/quality tradeoff: low for routing, medium for critique
// rationale and plan synthesis, high for candidate generation.
type Reasoner interface {
	Reason(ctx context.Context, prompt string, depth domain.DepthLevel) (string, error)
}

// EquilibriumSolver computes thermodynamic phase equilibrium for an
// element set at a given temperature and pressure.
type EquilibriumSolver interface {
	SolveEquilibrium(ctx context.Context, elements []string, temperatureK, pressurePa float64) (*domain.ThermoResult, error)
}

// StructuralSolver runs a finite-element analysis against a geometry
// reference under combined thermal and structural load.
type StructuralSolver interface {
	SolveStructural(ctx context.Context, geometryRef string, thermalLoadK, structuralLoadMPa float64) (*domain.FEAResult, error)
}

// Synthesizer renders the final presentation artifacts. Implementations
// write to the given path and may fail; degraded static artifacts are the
// gateway's fallback, not the adapter's concern.
type Synthesizer interface {
	SynthesizeVisual(ctx context.Context, sim *domain.FEAResult, path string) error
	SynthesizeAudio(ctx context.Context, state *domain.SessionState, path string) error
}

// ThermoCache memoizes equilibrium results across runs, keyed by element
// set and temperature. Lookups must be safe for concurrent use and a miss
// must never block on another run's computation.
type ThermoCache interface {
	Get(ctx context.Context, key string) (*domain.ThermoResult, bool)
	Put(ctx context.Context, key string, result *domain.ThermoResult)
}
