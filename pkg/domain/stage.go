package domain

// PipelineStage identifies one ordered phase of a pipeline run.
type PipelineStage string

const (
	StageDiscovery  PipelineStage = "discovery"
	StageResearch   PipelineStage = "research"
	StageRefinement PipelineStage = "refinement"
	StageSimulation PipelineStage = "simulation"
	StageSynthesis  PipelineStage = "synthesis"
	StageDone       PipelineStage = "done"
	StageFailed     PipelineStage = "failed"
)

// stageOrder fixes the forward progression. Failed is reachable from any
// stage and absorbing; it has no successor.
var stageOrder = []PipelineStage{
	StageDiscovery,
	StageResearch,
	StageRefinement,
	StageSimulation,
	StageSynthesis,
	StageDone,
}

// Stages returns the working stages in execution order (Done and Failed
// excluded).
func Stages() []PipelineStage {
	return stageOrder[:len(stageOrder)-1]
}

// Index returns the position of the stage in the forward order, or -1 for
// Failed and unknown values.
func (s PipelineStage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether the stage ends the run.
func (s PipelineStage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether moving from s to next respects the
// monotonic lifecycle: strictly forward, never revisiting, Failed
// reachable from anywhere, nothing reachable from a terminal stage.
func (s PipelineStage) CanTransition(next PipelineStage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	from, to := s.Index(), next.Index()
	if to < 0 {
		return false
	}
	if s == "" {
		return next == StageDiscovery
	}
	return to == from+1
}

// DepthLevel selects the latency/quality tradeoff of a reasoning call.
// It is a fixed enum mapped to collaborator call parameters, never a
// runtime-polymorphic dispatch.
type DepthLevel string

const (
	DepthLow    DepthLevel = "low"
	DepthMedium DepthLevel = "medium"
	DepthHigh   DepthLevel = "high"
)
