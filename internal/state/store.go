// Package state implements the session state store: the single mutable
// record threaded through a pipeline run. Writes go through Apply, which
// enforces per-stage key ownership and entity invariants with
// copy-on-write semantics, so a failed write never partially applies.
package state

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/aeroforge/aeroforge/pkg/domain"
	"github.com/aeroforge/aeroforge/pkg/validate"
)

// stageKeys declares which state keys each stage may write. Anything else
// is a schema violation for that stage.
var stageKeys = map[domain.PipelineStage][]string{
	domain.StageDiscovery: {"query_intent"},
	domain.StageResearch:  {"research_plan"},
	domain.StageRefinement: {
		"proposed_candidate", "final_formulation", "thermo_result",
		"rejected_candidates", "rejected_results", "loop_iterations",
	},
	domain.StageSimulation: {"simulation_result"},
	domain.StageSynthesis:  {"artifacts"},
}

// Session wraps one run's SessionState together with the version counter
// used for idempotent-replay detection during retries. A Session is owned
// by exactly one pipeline run and is not safe for concurrent use; run
// isolation is by construction, not locking.
type Session struct {
	state   *domain.SessionState
	version uint64
}

// Initialize creates the session for a new run. It fails with
// domain.ErrInvalidInput when the request is empty or longer than
// maxChars characters; no stage runs on an invalid request.
func Initialize(request string, maxChars int) (*Session, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("%w: request must not be empty", domain.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(request); n > maxChars {
		return nil, fmt.Errorf("%w: request is %d characters, limit is %d", domain.ErrInvalidInput, n, maxChars)
	}
	return &Session{
		state: &domain.SessionState{
			RunID:          uuid.NewString(),
			InitialRequest: request,
		},
	}, nil
}

// Apply merges patch into the state, accepting only keys owned by the
// given stage. The merge is validated against every entity invariant
// before it becomes visible; on failure the prior state is untouched.
// Each successful Apply advances the version counter.
func (s *Session) Apply(stage domain.PipelineStage, patch map[string]any) error {
	owned := stageKeys[stage]
	for key := range patch {
		if !contains(owned, key) {
			return &domain.SchemaViolationError{
				Stage: stage,
				Err:   fmt.Errorf("key %q is not writable by stage %s", key, stage),
			}
		}
	}

	next := s.state.Clone()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      next,
		ErrorUnused: false,
	})
	if err != nil {
		return &domain.SchemaViolationError{Stage: stage, Err: err}
	}
	if err := dec.Decode(patch); err != nil {
		return &domain.SchemaViolationError{Stage: stage, Err: err}
	}
	if err := validate.Session(next); err != nil {
		return &domain.SchemaViolationError{Stage: stage, Err: err}
	}

	s.state = next
	s.version++
	return nil
}

// EnterStage advances CurrentStage and records the entry timestamp. It
// enforces monotonic forward progression and strictly increasing entry
// times; violations surface as consistency faults.
func (s *Session) EnterStage(stage domain.PipelineStage, at time.Time) error {
	if !s.state.CurrentStage.CanTransition(stage) {
		return fmt.Errorf("illegal stage transition %q -> %q", s.state.CurrentStage, stage)
	}
	if prev := s.state.CurrentStage; prev != "" && prev != domain.StageFailed {
		if prevEntry, ok := s.state.StageEntered[string(prev)]; ok {
			prevAt, err := time.Parse(time.RFC3339Nano, prevEntry)
			if err != nil {
				return fmt.Errorf("corrupt stage timestamp for %s: %w", prev, err)
			}
			if !at.After(prevAt) {
				return fmt.Errorf("stage %s entered at %s, not after %s entry %s",
					stage, at.Format(time.RFC3339Nano), prev, prevEntry)
			}
		}
	}

	next := s.state.Clone()
	next.CurrentStage = stage
	if next.StageEntered == nil {
		next.StageEntered = make(map[string]string)
	}
	next.StageEntered[string(stage)] = at.UTC().Format(time.RFC3339Nano)
	s.state = next
	s.version++
	return nil
}

// Fail moves the run to the terminal Failed stage, preserving every field
// written so far. Failed is absorbing; repeated calls keep the first
// reason.
func (s *Session) Fail(reason string) {
	if s.state.CurrentStage == domain.StageFailed {
		return
	}
	next := s.state.Clone()
	next.CurrentStage = domain.StageFailed
	next.FailureReason = reason
	s.state = next
	s.version++
}

// AppendWarning records a degraded-path notice in order of occurrence.
func (s *Session) AppendWarning(warning string) {
	if warning == "" {
		return
	}
	next := s.state.Clone()
	next.Warnings = append(next.Warnings, warning)
	s.state = next
	s.version++
}

// State returns a snapshot deep copy. Callers never see the live record.
func (s *Session) State() *domain.SessionState {
	return s.state.Clone()
}

// RunID returns the run identifier assigned at initialization.
func (s *Session) RunID() string { return s.state.RunID }

// Version returns the write counter.
func (s *Session) Version() uint64 { return s.version }

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
