package agentloop

import "github.com/sunO2/scrs/pkg/model"

// State is the agent's lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateAnalyzing    State = "analyzing"
	StateExecuting    State = "executing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StatePaused       State = "paused"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Role mirrors model.Role for the conversation history kept here — the
// agent package depends on model for client calls anyway, so this is a
// thin alias rather than a duplicate enum.
type Role = model.Role

// Message is one entry in the agent's conversation history.
type Message struct {
	Role    Role
	Content string
}

// ExecutionStep is the audit record: appended in order, never mutated.
type ExecutionStep struct {
	StepNumber        int
	ActionType        string
	ActionDescription string
	Success           bool
	ResultMessage     string
	DurationMs        int64
	Timestamp         int64 // unix millis, stamped by the caller
	ScreenshotPath    string
	Reasoning         string
}

// Status is a read-only snapshot of the agent's current condition, used by
// HTTP/event-layer callers that should not see the live mutex-guarded state.
type Status struct {
	State        State
	Step         int
	StartedAtUnix int64
	Error        string
}

// Feedback is the feedback variant, a closed tagged union.
type FeedbackKind string

const (
	FeedbackPositive   FeedbackKind = "positive"
	FeedbackNegative   FeedbackKind = "negative"
	FeedbackCorrection FeedbackKind = "correction"
)

type Feedback struct {
	Kind      FeedbackKind
	Reason    string // Negative
	Operation string // Correction
}
