package model

import "context"

// Stage tags a query with which phase of the three-stage pipeline produced
// it, carried on the request context the way per-call metadata usually is,
// trimmed down to a single field since there's no billing/session
// accounting to thread alongside it here.
type Stage string

const (
	StageSingle  Stage = "single"
	StagePlan    Stage = "plan"
	StageExecute Stage = "execute"
	StageCorrect Stage = "correct"
)

type stageKey struct{}

// WithStage attaches a pipeline stage tag to ctx, read back by the client
// to choose the request timeout (plan and execute stages get the longer
// three-stage timeout).
func WithStage(ctx context.Context, stage Stage) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFromContext returns the stage tag, defaulting to StageSingle.
func StageFromContext(ctx context.Context) Stage {
	if ctx == nil {
		return StageSingle
	}
	stage, ok := ctx.Value(stageKey{}).(Stage)
	if !ok {
		return StageSingle
	}
	return stage
}
