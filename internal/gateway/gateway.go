// Package gateway wraps every external collaborator call with uniform
// retry, timeout, and fallback semantics. Callers never see raw transport
// errors: transient failures are retried with capped exponential backoff,
// permanent failures surface immediately, and collaborators with a
// declared fallback policy always return a structurally valid, flagged
// result so downstream stages are never blocked by an outage.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/ports"
)

// RetryPolicy bounds one collaborator call.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	CallTimeout time.Duration
}

// Gateway fronts the external collaborators.
type Gateway struct {
	searcher   ports.Searcher
	reasoner   ports.Reasoner
	thermo     ports.EquilibriumSolver
	structural ports.StructuralSolver
	synth      ports.Synthesizer

	policy RetryPolicy
	logger *slog.Logger
	hooks  domain.LifecycleHooks

	// sleep is swappable so retry tests don't wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithHooks registers lifecycle callbacks for tool calls.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Gateway) { g.hooks = hooks }
}

// WithSleep overrides the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = sleep }
}

// New creates a gateway over the given collaborators.
func New(searcher ports.Searcher, reasoner ports.Reasoner, thermo ports.EquilibriumSolver,
	structural ports.StructuralSolver, synth ports.Synthesizer, policy RetryPolicy, opts ...Option) *Gateway {
	g := &Gateway{
		searcher:   searcher,
		reasoner:   reasoner,
		thermo:     thermo,
		structural: structural,
		synth:      synth,
		policy:     policy,
		logger:     logging.NewNop(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transient classifies an error as retryable. Unknown errors count as
// permanent; adapters wrap rate limits and 5xx-equivalents in
// domain.TransientError.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var perm *domain.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	var tr *domain.TransientError
	if errors.As(err, &tr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// call runs op with per-attempt timeout and capped exponential backoff.
// Only classified-transient errors are retried.
func call[T any](ctx context.Context, g *Gateway, tool string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := g.policy.BackoffBase

	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		g.emitToolCall(ctx, tool, attempt)

		callCtx, cancel := context.WithTimeout(ctx, g.policy.CallTimeout)
		started := time.Now()
		out, err := op(callCtx)
		callDuration.WithLabelValues(tool).Observe(time.Since(started).Seconds())
		cancel()

		g.emitToolReturn(ctx, tool, attempt, err != nil)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !transient(err) {
			g.logger.WarnContext(ctx, "collaborator call failed permanently",
				"tool", tool, "attempt", attempt, "error", err)
			return zero, err
		}
		retriesTotal.WithLabelValues(tool).Inc()
		g.logger.WarnContext(ctx, "collaborator call failed, will retry",
			"tool", tool, "attempt", attempt, "backoff", backoff, "error", err)

		if attempt == g.policy.MaxAttempts {
			break
		}
		if err := g.sleep(ctx, backoff); err != nil {
			return zero, err
		}
		backoff *= 2
		if backoff > g.policy.BackoffCap {
			backoff = g.policy.BackoffCap
		}
	}
	return zero, lastErr
}

func (g *Gateway) emitToolCall(ctx context.Context, tool string, attempt int) {
	if g.hooks.OnToolCall != nil {
		g.hooks.OnToolCall(ctx, &domain.ToolEvent{
			Timestamp: time.Now(),
			Tool:      tool,
			Attempt:   attempt,
		})
	}
}

func (g *Gateway) emitToolReturn(ctx context.Context, tool string, attempt int, isErr bool) {
	if g.hooks.OnToolReturn != nil {
		g.hooks.OnToolReturn(ctx, &domain.ToolEvent{
			Timestamp: time.Now(),
			Tool:      tool,
			Attempt:   attempt,
			IsError:   isErr,
		})
	}
}

func (g *Gateway) fallback(ctx context.Context, tool string) {
	fallbacksTotal.WithLabelValues(tool).Inc()
	if g.hooks.OnToolReturn != nil {
		g.hooks.OnToolReturn(ctx, &domain.ToolEvent{
			Timestamp: time.Now(),
			Tool:      tool,
			Fallback:  true,
		})
	}
}

// Search queries the literature search collaborator. Search has no
// standalone fallback: the research stage's plan synthesis degrades
// instead, so an exhausted search surfaces its error.
func (g *Gateway) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	return call(ctx, g, "search", func(ctx context.Context) ([]domain.SearchResult, error) {
		return g.searcher.Search(ctx, query)
	})
}

// Reason invokes the reasoning collaborator at the given depth. Recovery
// is owned by the caller: the refinement loop counts failures against its
// iteration budget and plan synthesis falls back to a default plan.
func (g *Gateway) Reason(ctx context.Context, prompt string, depth domain.DepthLevel) (string, error) {
	return call(ctx, g, "reason", func(ctx context.Context) (string, error) {
		return g.reasoner.Reason(ctx, prompt, depth)
	})
}
