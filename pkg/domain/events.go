package domain

import (
	"context"
	"time"
)

// StageEvent marks entry to or exit from a pipeline stage.
type StageEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"run_id"`
	Stage     PipelineStage `json:"stage"`
}

// ToolEvent marks one attempt against an external collaborator.
type ToolEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Tool      string    `json:"tool"`
	Attempt   int       `json:"attempt"`
	IsError   bool      `json:"is_error,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// LoopEvent marks one refinement iteration verdict.
type LoopEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Iteration int       `json:"iteration"`
	Accepted  bool      `json:"accepted"`
}

// LifecycleHooks defines optional callbacks for run observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnStageEnter    func(context.Context, *StageEvent)
	OnStageLeave    func(context.Context, *StageEvent)
	OnToolCall      func(context.Context, *ToolEvent)
	OnToolReturn    func(context.Context, *ToolEvent)
	OnLoopIteration func(context.Context, *LoopEvent)
}
