package domain

// SessionState is the single long-lived record passed stage to stage.
// It is exclusively owned by the stage sequencer for the duration of one
// run; stages receive it by reference and may only append or replace the
// fields they own, never delete keys.
type SessionState struct {
	// RunID identifies the run; artifact filenames derive from it.
	RunID string `json:"run_id"`

	// InitialRequest is the original natural-language request.
	InitialRequest string `json:"initial_request"`

	QueryIntent  string        `json:"query_intent,omitempty" mapstructure:"query_intent"`
	ResearchPlan *ResearchPlan `json:"research_plan,omitempty" mapstructure:"research_plan"`

	ProposedCandidate *AlloyCandidate `json:"proposed_candidate,omitempty" mapstructure:"proposed_candidate"`
	FinalFormulation  *AlloyCandidate `json:"final_formulation,omitempty" mapstructure:"final_formulation"`
	ThermoResult      *ThermoResult   `json:"thermo_result,omitempty" mapstructure:"thermo_result"`
	SimulationResult  *FEAResult      `json:"simulation_result,omitempty" mapstructure:"simulation_result"`

	// RejectedCandidates and RejectedResults record every refinement
	// iteration the critic rejected, index-aligned. Past entries are
	// never revisited or re-validated.
	RejectedCandidates []AlloyCandidate `json:"rejected_candidates,omitempty" mapstructure:"rejected_candidates"`
	RejectedResults    []ThermoResult   `json:"rejected_results,omitempty" mapstructure:"rejected_results"`

	CurrentStage PipelineStage `json:"current_stage,omitempty"`

	// StageEntered records the entry timestamp of each stage as an
	// RFC3339Nano string, keeping the state a plain JSON tree.
	StageEntered map[string]string `json:"stage_entered,omitempty"`

	LoopIterations int      `json:"loop_iterations" mapstructure:"loop_iterations"`
	Warnings       []string `json:"warnings,omitempty"`

	// Artifacts maps artifact kind ("visual", "audio") to the written
	// file path.
	Artifacts map[string]string `json:"artifacts,omitempty" mapstructure:"artifacts"`

	// FailureReason is set when the run ends in StageFailed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Clone returns a deep copy. Stages mutate copies, never shared memory.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	next := *s
	next.ResearchPlan = clonePtr(s.ResearchPlan, func(p ResearchPlan) ResearchPlan {
		p.RequiredProperties = append([]string(nil), p.RequiredProperties...)
		p.SuggestedElements = append([]string(nil), p.SuggestedElements...)
		return p
	})
	next.ProposedCandidate = cloneCandidate(s.ProposedCandidate)
	next.FinalFormulation = cloneCandidate(s.FinalFormulation)
	next.ThermoResult = clonePtr(s.ThermoResult, cloneThermo)
	next.SimulationResult = clonePtr(s.SimulationResult, func(r FEAResult) FEAResult { return r })
	next.RejectedCandidates = make([]AlloyCandidate, len(s.RejectedCandidates))
	for i, c := range s.RejectedCandidates {
		next.RejectedCandidates[i] = *cloneCandidate(&c)
	}
	next.RejectedResults = make([]ThermoResult, len(s.RejectedResults))
	for i, r := range s.RejectedResults {
		next.RejectedResults[i] = cloneThermo(r)
	}
	if len(next.RejectedCandidates) == 0 {
		next.RejectedCandidates = nil
	}
	if len(next.RejectedResults) == 0 {
		next.RejectedResults = nil
	}
	next.StageEntered = cloneStringMap(s.StageEntered)
	next.Warnings = append([]string(nil), s.Warnings...)
	next.Artifacts = cloneStringMap(s.Artifacts)
	return &next
}

func clonePtr[T any](p *T, copyFn func(T) T) *T {
	if p == nil {
		return nil
	}
	v := copyFn(*p)
	return &v
}

func cloneCandidate(c *AlloyCandidate) *AlloyCandidate {
	return clonePtr(c, func(v AlloyCandidate) AlloyCandidate {
		v.Matrix = append([]string(nil), v.Matrix...)
		return v
	})
}

func cloneThermo(r ThermoResult) ThermoResult {
	r.Elements = append([]string(nil), r.Elements...)
	r.StablePhases = append([]PhaseFraction(nil), r.StablePhases...)
	return r
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
