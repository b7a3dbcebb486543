// Package refine implements the bounded generator-critic loop that turns
// a research plan into a validated alloy formulation. The generator asks
// the reasoning collaborator for candidates; the critic checks each one
// against the thermodynamic solver. Iterations are strictly sequential
// since each rejection feeds the next generation prompt.
package refine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aeroforge/aeroforge/internal/gateway"
	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/internal/state"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/ports"
)

var errNoPlan = errors.New("refinement requires a research plan")

// escalationTolerance is how much residual instability an escalated
// critique accepts. A candidate passing only under this widened bound is
// tagged unvalidated.
const escalationTolerance = 0.10

// escalationIterations bounds the relaxed sub-loop.
const escalationIterations = 2

// Config bounds one refinement run.
type Config struct {
	// MaxIterations caps the generate-critique cycle.
	MaxIterations int
	// GenerationRetries is how many extra generation attempts one
	// iteration gets before counting as rejected.
	GenerationRetries int
	// Escalate enables the relaxed sub-loop after exhaustion instead of
	// surfacing LoopExhaustedError directly.
	Escalate bool
}

// Loop runs the refinement stage.
type Loop struct {
	gen    generator
	crit   critic
	cfg    Config
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithHooks registers iteration callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Loop) { l.hooks = hooks }
}

// New creates a Loop. memo may be nil to disable cross-run memoization.
func New(gw *gateway.Gateway, memo ports.ThermoCache, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		gen:    generator{gw: gw, retries: cfg.GenerationRetries},
		crit:   critic{gw: gw, memo: memo},
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drives the loop until a candidate passes critique or the iteration
// budget runs out. On success the session holds final_formulation and
// its thermo_result; on exhaustion it returns LoopExhaustedError unless
// escalation recovers a formulation.
func (l *Loop) Run(ctx context.Context, session *state.Session) error {
	plan := session.State().ResearchPlan
	if plan == nil {
		return &domain.StageFailureError{Stage: domain.StageRefinement, Err: errNoPlan}
	}

	var feedback []string
	for i := 1; i <= l.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidate, err := l.gen.propose(ctx, plan, feedback)
		if err != nil {
			l.logger.WarnContext(ctx, "iteration lost to generation failure",
				"iteration", i, "error", err)
			feedback = append(feedback, "previous attempt produced no parseable candidate")
			l.emit(ctx, session.RunID(), i, false)
			if err := session.Apply(domain.StageRefinement, map[string]any{"loop_iterations": i}); err != nil {
				return err
			}
			continue
		}

		result, warning := l.crit.critique(ctx, candidate)
		session.AppendWarning(warning)

		if result.IsStable {
			l.emit(ctx, session.RunID(), i, true)
			l.logger.InfoContext(ctx, "candidate accepted",
				"iteration", i, "matrix", candidate.Matrix)
			return session.Apply(domain.StageRefinement, map[string]any{
				"proposed_candidate": candidate,
				"final_formulation":  candidate,
				"thermo_result":      result,
				"loop_iterations":    i,
			})
		}

		l.emit(ctx, session.RunID(), i, false)
		l.logger.InfoContext(ctx, "candidate rejected",
			"iteration", i, "matrix", candidate.Matrix, "instability", result.InstabilityMass())
		feedback = append(feedback, rejectionFeedback(candidate, result))

		snap := session.State()
		if err := session.Apply(domain.StageRefinement, map[string]any{
			"proposed_candidate":  candidate,
			"thermo_result":       result,
			"rejected_candidates": append(snap.RejectedCandidates, *candidate),
			"rejected_results":    append(snap.RejectedResults, *result),
			"loop_iterations":     i,
		}); err != nil {
			return err
		}
	}

	if l.cfg.Escalate {
		return l.escalate(ctx, session, plan, feedback)
	}
	return &domain.LoopExhaustedError{Iterations: l.cfg.MaxIterations}
}

// escalate runs the relaxed sub-loop after exhaustion: the critique
// accepts small residual instability, and if even that fails, the best
// rejected candidate is promoted. Either way the formulation is tagged
// unvalidated; loop_iterations stays at the cap.
func (l *Loop) escalate(ctx context.Context, session *state.Session, plan *domain.ResearchPlan, feedback []string) error {
	relaxed := *plan
	relaxed.ThermodynamicConstraints = plan.ThermodynamicConstraints +
		" Minor phase instability within a 10% mass tolerance is acceptable."

	for i := 1; i <= escalationIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidate, err := l.gen.propose(ctx, &relaxed, feedback)
		if err != nil {
			continue
		}
		result, warning := l.crit.critique(ctx, candidate)
		session.AppendWarning(warning)
		if result.IsStable || result.InstabilityMass() <= escalationTolerance {
			candidate.Provenance = domain.ProvenanceUnvalidated
			session.AppendWarning("refinement: formulation accepted under relaxed tolerance (unvalidated)")
			return session.Apply(domain.StageRefinement, map[string]any{
				"proposed_candidate": candidate,
				"final_formulation":  candidate,
				"thermo_result":      result,
			})
		}
		feedback = append(feedback, rejectionFeedback(candidate, result))
	}

	best, evidence, ok := bestRejected(session.State())
	if !ok {
		return &domain.LoopExhaustedError{Iterations: l.cfg.MaxIterations}
	}
	best.Provenance = domain.ProvenanceUnvalidated
	session.AppendWarning("refinement: no stable candidate found, promoting best rejected formulation (unvalidated)")
	return session.Apply(domain.StageRefinement, map[string]any{
		"final_formulation": best,
		"thermo_result":     evidence,
	})
}

// bestRejected picks the rejected candidate with the least instability
// mass, ties broken by earliest iteration, along with the critique that
// rejected it so the promoted formulation keeps its own evidence.
func bestRejected(s *domain.SessionState) (*domain.AlloyCandidate, *domain.ThermoResult, bool) {
	if len(s.RejectedCandidates) == 0 || len(s.RejectedCandidates) != len(s.RejectedResults) {
		return nil, nil, false
	}
	bestIdx := 0
	bestMass := s.RejectedResults[0].InstabilityMass()
	for i := 1; i < len(s.RejectedResults); i++ {
		if mass := s.RejectedResults[i].InstabilityMass(); mass < bestMass {
			bestIdx, bestMass = i, mass
		}
	}
	candidate := s.RejectedCandidates[bestIdx]
	result := s.RejectedResults[bestIdx]
	return &candidate, &result, true
}

func (l *Loop) emit(ctx context.Context, runID string, iteration int, accepted bool) {
	if l.hooks.OnLoopIteration != nil {
		l.hooks.OnLoopIteration(ctx, &domain.LoopEvent{
			Timestamp: time.Now(),
			RunID:     runID,
			Iteration: iteration,
			Accepted:  accepted,
		})
	}
}
