package aeroforge

import (
	"context"
	"fmt"
	"log/slog"

	openaiAdapter "github.com/aeroforge/aeroforge/internal/adapters/openai"
	"github.com/aeroforge/aeroforge/internal/adapters/solver"
	"github.com/aeroforge/aeroforge/internal/adapters/synthesis"
	weaviateAdapter "github.com/aeroforge/aeroforge/internal/adapters/weaviate"
	"github.com/aeroforge/aeroforge/internal/cache"
	"github.com/aeroforge/aeroforge/internal/gateway"
	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/internal/pipeline"
	"github.com/aeroforge/aeroforge/internal/refine"
	"github.com/aeroforge/aeroforge/pkg/config"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/ports"
)

// Engine is the high-level entry point. It wires the collaborators, the
// tool gateway, the refinement loop, and the stage sequencer from a
// Config, and runs complete pipelines.
type Engine struct {
	sequencer *pipeline.Sequencer

	cfg    config.Config
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	searcher   ports.Searcher
	reasoner   ports.Reasoner
	thermo     ports.EquilibriumSolver
	structural ports.StructuralSolver
	synth      ports.Synthesizer
	memo       ports.ThermoCache
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLifecycleHooks registers observability hooks for stages, tool
// calls, and loop iterations.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithSearcher injects a custom literature searcher, bypassing the
// default Weaviate adapter.
func WithSearcher(s ports.Searcher) Option {
	return func(e *Engine) { e.searcher = s }
}

// WithReasoner injects a custom reasoning collaborator.
func WithReasoner(r ports.Reasoner) Option {
	return func(e *Engine) { e.reasoner = r }
}

// WithEquilibriumSolver injects a custom thermodynamic solver.
func WithEquilibriumSolver(s ports.EquilibriumSolver) Option {
	return func(e *Engine) { e.thermo = s }
}

// WithStructuralSolver injects a custom structural solver.
func WithStructuralSolver(s ports.StructuralSolver) Option {
	return func(e *Engine) { e.structural = s }
}

// WithSynthesizer injects a custom artifact synthesizer.
func WithSynthesizer(s ports.Synthesizer) Option {
	return func(e *Engine) { e.synth = s }
}

// WithThermoCache injects the cross-run equilibrium memo. Without this
// option the cache comes from Config.Redis, or is disabled when no
// address is configured.
func WithThermoCache(c ports.ThermoCache) Option {
	return func(e *Engine) { e.memo = c }
}

// New initializes an Engine from cfg. Collaborators not injected through
// options are built from the configured endpoints; a missing endpoint or
// credential is an error, since the gateway needs a real collaborator to
// degrade from.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.New(logging.ParseLevel(cfg.LogLevel))
	}

	if e.reasoner == nil {
		r, err := openaiAdapter.New(cfg.OpenAI.APIKey,
			cfg.OpenAI.ModelLow, cfg.OpenAI.ModelMedium, cfg.OpenAI.ModelHigh)
		if err != nil {
			return nil, fmt.Errorf("initialize reasoner: %w", err)
		}
		e.reasoner = r
	}
	if e.searcher == nil {
		s, err := weaviateAdapter.New(cfg.Weaviate.URL, cfg.Weaviate.ClassName)
		if err != nil {
			return nil, fmt.Errorf("initialize searcher: %w", err)
		}
		e.searcher = s
	}
	if e.thermo == nil {
		if cfg.Thermo.URL == "" {
			return nil, fmt.Errorf("thermodynamic solver url not configured")
		}
		e.thermo = solver.NewThermo(cfg.Thermo.URL, cfg.Thermo.DatabaseRef)
	}
	if e.structural == nil {
		if cfg.FEA.URL == "" {
			return nil, fmt.Errorf("structural solver url not configured")
		}
		e.structural = solver.NewStructural(cfg.FEA.URL)
	}
	if e.synth == nil {
		e.synth = synthesis.NewFromAPIKey(e.reasoner, cfg.OpenAI.APIKey)
	}
	if e.memo == nil && cfg.Redis.Addr != "" {
		e.memo = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cache.WithTTL(cfg.Redis.TTL.Std()),
			cache.WithLogger(e.logger))
	}

	gw := gateway.New(e.searcher, e.reasoner, e.thermo, e.structural, e.synth,
		gateway.RetryPolicy{
			MaxAttempts: cfg.Gateway.MaxAttempts,
			BackoffBase: cfg.Gateway.BackoffBase.Std(),
			BackoffCap:  cfg.Gateway.BackoffCap.Std(),
			CallTimeout: cfg.Gateway.CallTimeout.Std(),
		},
		gateway.WithLogger(e.logger),
		gateway.WithHooks(e.hooks),
	)

	loop := refine.New(gw, e.memo,
		refine.Config{
			MaxIterations:     cfg.Refine.MaxIterations,
			GenerationRetries: cfg.Refine.GenerationRetries,
			Escalate:          cfg.Refine.Escalate,
		},
		refine.WithLogger(e.logger),
		refine.WithHooks(e.hooks),
	)

	e.sequencer = pipeline.New(gw, loop, cfg,
		pipeline.WithLogger(e.logger),
		pipeline.WithHooks(e.hooks),
	)
	return e, nil
}

// Run executes one pipeline for the natural-language request. The
// returned state is always the final snapshot when a run started; the
// error reports what stopped it, if anything did.
func (e *Engine) Run(ctx context.Context, request string) (*domain.SessionState, error) {
	return e.sequencer.Run(ctx, request)
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() config.Config { return e.cfg }
