// Package pipeline drives a run through its ordered stages: discovery,
// research, refinement, simulation, synthesis. Stages execute strictly
// sequentially; the only intra-run parallelism is the research stage's
// search fan-out. On an unrecoverable stage error the run moves to the
// terminal failed stage with everything written so far preserved.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/aeroforge/aeroforge/internal/gateway"
	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/internal/refine"
	"github.com/aeroforge/aeroforge/internal/state"
	"github.com/aeroforge/aeroforge/pkg/config"
	"github.com/aeroforge/aeroforge/pkg/domain"
)

// Sequencer owns stage ordering and failure policy for pipeline runs.
type Sequencer struct {
	gw   *gateway.Gateway
	loop *refine.Loop

	maxRequestChars int
	simCfg          config.SimulationConfig
	outputDir       string

	logger *slog.Logger
	hooks  domain.LifecycleHooks
	clock  func() time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the sequencer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = logger }
}

// WithHooks registers stage lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Sequencer) { s.hooks = hooks }
}

// WithClock overrides the stage timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Sequencer) { s.clock = clock }
}

// New creates a Sequencer.
func New(gw *gateway.Gateway, loop *refine.Loop, cfg config.Config, opts ...Option) *Sequencer {
	s := &Sequencer{
		gw:              gw,
		loop:            loop,
		maxRequestChars: cfg.MaxRequestChars,
		simCfg:          cfg.Simulation,
		outputDir:       cfg.OutputDir,
		logger:          logging.NewNop(),
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type stageFunc func(context.Context, *state.Session) error

// Run executes one full pipeline for the request. It always returns the
// final state snapshot, alongside the error that stopped the run if one
// did: an invalid request returns before any stage executes, and any
// stage failure moves the run to the failed stage with prior fields
// preserved.
func (s *Sequencer) Run(ctx context.Context, request string) (*domain.SessionState, error) {
	session, err := state.Initialize(request, s.maxRequestChars)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("run_id", session.RunID())
	logger.InfoContext(ctx, "run starting")

	stages := []struct {
		stage domain.PipelineStage
		fn    stageFunc
	}{
		{domain.StageDiscovery, s.discovery},
		{domain.StageResearch, s.research},
		{domain.StageRefinement, s.refinement},
		{domain.StageSimulation, s.simulation},
		{domain.StageSynthesis, s.synthesis},
	}

	for _, step := range stages {
		if err := ctx.Err(); err != nil {
			session.Fail(err.Error())
			return session.State(), err
		}
		if err := session.EnterStage(step.stage, s.clock()); err != nil {
			session.Fail(err.Error())
			return session.State(), &domain.StageFailureError{Stage: step.stage, Err: err}
		}
		s.emitStage(ctx, session.RunID(), step.stage, true)
		logger.InfoContext(ctx, "stage entered", "stage", step.stage)

		if err := step.fn(ctx, session); err != nil {
			logger.ErrorContext(ctx, "stage failed", "stage", step.stage, "error", err)
			session.Fail(err.Error())
			s.emitStage(ctx, session.RunID(), domain.StageFailed, true)
			return session.State(), &domain.StageFailureError{Stage: step.stage, Err: err}
		}
		s.emitStage(ctx, session.RunID(), step.stage, false)
	}

	if err := session.EnterStage(domain.StageDone, s.clock()); err != nil {
		session.Fail(err.Error())
		return session.State(), &domain.StageFailureError{Stage: domain.StageDone, Err: err}
	}
	logger.InfoContext(ctx, "run complete",
		"iterations", session.State().LoopIterations,
		"warnings", len(session.State().Warnings))
	return session.State(), nil
}

func (s *Sequencer) emitStage(ctx context.Context, runID string, stage domain.PipelineStage, enter bool) {
	event := &domain.StageEvent{Timestamp: time.Now(), RunID: runID, Stage: stage}
	if enter {
		if s.hooks.OnStageEnter != nil {
			s.hooks.OnStageEnter(ctx, event)
		}
		return
	}
	if s.hooks.OnStageLeave != nil {
		s.hooks.OnStageLeave(ctx, event)
	}
}
