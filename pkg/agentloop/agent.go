// Package agentloop implements the agent: a supervised background
// state machine driving screenshot → model query → parse → execute cycles
// against a single device.
package agentloop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sunO2/scrs/pkg/action"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/executor"
	"github.com/sunO2/scrs/pkg/model"
)

// Config holds the per-run tunables, all with defaults.
type Config struct {
	MaxSteps           int
	MaxExecutionTime   time.Duration
	ActionDelay        time.Duration
	MaxNoActionStreak  int
	AuditLogDir        string // empty disables audit persistence
}

func DefaultConfig() Config {
	return Config{
		MaxSteps:          50,
		MaxExecutionTime:  300 * time.Second,
		ActionDelay:       1000 * time.Millisecond,
		MaxNoActionStreak: 3,
	}
}

// Agent is the state machine driving one device's task loop. running is an
// atomic flag that the loop goroutine clears on exit, so Start can reject a
// second run without waiting on the loop.
type Agent struct {
	id     string
	task   string
	dev    device.Device
	client *model.Client
	exec   *executor.Executor
	cfg    Config

	resolvePackage func(string) (string, error)

	conv *Conversation
	ring *RingContext

	running atomic.Bool
	paused  atomic.Bool

	mu        sync.Mutex
	state     State
	step      int
	noAction  int
	startedAt time.Time
	lastErr   string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	audit *AuditLog
}

// New builds an Agent for one device run. id is typically a freshly minted
// UUID, supplied by the pool's lazy-create gateway.
func New(id, task string, dev device.Device, client *model.Client, exec *executor.Executor, resolvePackage func(string) (string, error), cfg Config) *Agent {
	return &Agent{
		id:             id,
		task:           task,
		dev:            dev,
		client:         client,
		exec:           exec,
		resolvePackage: resolvePackage,
		cfg:            cfg,
		conv:           NewConversation(),
		ring:           NewRingContext(50),
		state:          StateIdle,
	}
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Status{State: a.state, Step: a.step, StartedAtUnix: a.startedAt.Unix(), Error: a.lastErr}
}

// Start spawns the supervised background task carrying the loop. Resets
// state if the agent is in a terminal state; rejects if already running.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running.Load() {
		a.mu.Unlock()
		return NewError(ErrAlreadyRunning, "agent %s is already running", a.id)
	}
	if a.state.Terminal() {
		a.reset()
	}
	a.state = StateInitializing
	a.startedAt = time.Now()
	a.lastErr = ""
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running.Store(true)

	if a.cfg.AuditLogDir != "" {
		auditLog, err := NewAuditLog(a.cfg.AuditLogDir, a.id, time.Now().Format("2006-01-02"))
		if err != nil {
			log.Warn().Err(err).Msg("failed to open audit log, continuing without persistence")
		} else {
			a.audit = auditLog
		}
	}

	width, height, err := a.dev.ScreenSize(runCtx)
	if err != nil {
		cancel()
		a.running.Store(false)
		return fmt.Errorf("agent start: read screen size: %w", err)
	}

	sys := systemPrompt(width, height, time.Now().Format("2006-01-02"), a.task)
	a.conv.Add(Message{Role: model.RoleSystem, Content: sys})
	a.conv.Add(Message{Role: model.RoleUser, Content: initialUserMessage(a.task)})

	if a.audit != nil {
		_ = a.audit.RecordStart(a.task, time.Now().UnixMilli())
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.running.Store(false)
		a.runLoop(runCtx)
	}()

	return nil
}

// Stop aborts cleanly, abandoning pending work.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if a.audit != nil {
		_ = a.audit.Close()
	}
}

// Pause is cooperative: it stops the next iteration from starting, not any
// in-flight HTTP call.
func (a *Agent) Pause() {
	a.paused.Store(true)
}

// Resume re-enters the loop at the same step.
func (a *Agent) Resume() {
	a.mu.Lock()
	if a.state == StatePaused {
		a.state = StateAnalyzing
	}
	a.mu.Unlock()
	a.paused.Store(false)
}

// Feedback accepts Positive/Negative/Correction; Correction injects a user
// message, others are informational.
func (a *Agent) Feedback(fb Feedback) {
	switch fb.Kind {
	case FeedbackCorrection:
		a.conv.Add(Message{Role: model.RoleUser, Content: "Correction: " + fb.Operation})
	case FeedbackNegative:
		log.Info().Str("agent", a.id).Str("reason", fb.Reason).Msg("received negative feedback")
	case FeedbackPositive:
		log.Info().Str("agent", a.id).Msg("received positive feedback")
	}
}

func (a *Agent) reset() {
	a.state = StateIdle
	a.step = 0
	a.noAction = 0
	a.conv = NewConversation()
	a.ring = NewRingContext(50)
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) fail(reason string, cause error) {
	a.mu.Lock()
	a.state = StateFailed
	if cause != nil {
		a.lastErr = fmt.Sprintf("%s: %v", reason, cause)
	} else {
		a.lastErr = reason
	}
	a.mu.Unlock()

	if a.audit != nil {
		elapsed := time.Since(a.startedAt).Milliseconds()
		_ = a.audit.RecordFailed(a.step, elapsed, a.lastErr)
	}
	log.Error().Str("agent", a.id).Str("reason", reason).Err(cause).Msg("agent run failed")
}

// runLoop implements the agent's per-iteration step sequence: query the
// model, parse actions, execute them, record audit entries, and decide
// whether to continue.
func (a *Agent) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if a.paused.Load() {
			a.setState(StatePaused)
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		// Step 1: bound checks, in order.
		if a.step >= a.cfg.MaxSteps {
			a.fail("max_steps_exceeded", NewError(ErrMaxStepsExceeded, "reached max_steps=%d", a.cfg.MaxSteps))
			return
		}
		if a.noAction >= a.cfg.MaxNoActionStreak {
			a.fail("consecutive_no_action_exceeded", NewError(ErrTaskFailed, "no recognisable action for %d consecutive steps", a.noAction))
			return
		}
		if time.Since(a.startedAt) > a.cfg.MaxExecutionTime {
			a.fail("max_execution_time_exceeded", NewError(ErrTimeoutExceeded, "exceeded max_execution_time=%s", a.cfg.MaxExecutionTime))
			return
		}

		a.setState(StateAnalyzing)

		// Step 2: screenshot.
		screenshot, err := a.dev.Screenshot(ctx)
		if err != nil {
			a.fail("screenshot_failed", err)
			return
		}

		// Step 3: model query against a snapshot of the full history.
		snapshot := a.conv.Snapshot()
		resp, err := a.client.QueryWithMessages(ctx, toModelMessages(snapshot), screenshot, a.resolvePackage)
		if err != nil {
			a.fail("model_query_failed", err)
			return
		}

		// Step 4/5: empty-action branch.
		if len(resp.Actions) == 0 {
			a.conv.Add(Message{Role: model.RoleAssistant, Content: resp.RawContent})
			a.conv.Add(Message{Role: model.RoleUser, Content: feedbackMessage})
			a.noAction++
			a.advanceStep()
			continue
		}

		// Step 6: finish branch.
		if finishIdx := indexOfFinish(resp.Actions); finishIdx >= 0 {
			a.completeRun(resp.Actions[finishIdx], resp.Reasoning)
			return
		}

		// Step 7: execute-batch branch.
		a.noAction = 0
		a.setState(StateExecuting)
		a.executeBatch(ctx, resp, screenshot)

		// Step 9: pacing.
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.ActionDelay):
		}

		// Step 10: advance.
		a.advanceStep()
	}
}

func (a *Agent) advanceStep() {
	a.mu.Lock()
	a.step++
	a.mu.Unlock()
}

func indexOfFinish(actions []model.ParsedAction) int {
	for i, act := range actions {
		if act.Kind == action.KindFinish {
			return i
		}
	}
	return -1
}

func (a *Agent) completeRun(finish model.ParsedAction, reasoning string) {
	a.conv.Add(Message{Role: model.RoleAssistant, Content: fmt.Sprintf("Task completed: %s", finish.Result)})

	a.mu.Lock()
	a.state = StateCompleted
	steps := a.step
	a.mu.Unlock()

	elapsed := time.Since(a.startedAt).Milliseconds()
	if a.audit != nil {
		_ = a.audit.RecordCompleted(steps, elapsed, reasoning)
	}
	log.Info().Str("agent", a.id).Int("steps", steps).Int64("elapsedMs", elapsed).Msg("agent task completed")
}

// executeBatch runs each parsed action through the executor in order,
// records per-action audit entries, and appends the batch-summary messages
// that become the next prompt's tail (step 7/8).
func (a *Agent) executeBatch(ctx context.Context, resp *model.Response, screenshot string) {
	var summaryLines []string
	var batchDescr []string

	for i, act := range resp.Actions {
		result, err := a.exec.ExecuteWithRetry(ctx, act)
		timestamp := time.Now().UnixMilli()

		success := err == nil && result.Success
		detail := result.Message
		if err != nil {
			detail = err.Error()
		}

		batchDescr = append(batchDescr, fmt.Sprintf("(%s, %s)", act.Kind, act.Description))
		summaryLines = append(summaryLines, fmt.Sprintf("%d. %s: success=%t detail=%q duration_ms=%d", i+1, act.Kind, success, detail, result.DurationMs))

		step := ExecutionStep{
			StepNumber:        a.step,
			ActionType:        string(act.Kind),
			ActionDescription: act.Description,
			Success:           success,
			ResultMessage:     detail,
			DurationMs:        result.DurationMs,
			Timestamp:         timestamp,
			Reasoning:         resp.Reasoning,
		}
		a.ring.Push(Message{Role: model.RoleAssistant, Content: fmt.Sprintf("%s -> success=%t", act.Kind, success)})

		if a.audit != nil {
			shot := ""
			if i == 0 {
				shot = screenshot
			}
			if err := a.audit.RecordStep(step, shot); err != nil {
				log.Warn().Err(err).Msg("failed to persist execution step")
			}
		}
	}

	a.conv.Add(Message{
		Role:    model.RoleAssistant,
		Content: fmt.Sprintf("Executed %d action(s): %s. Reasoning: %s", len(resp.Actions), joinStrings(batchDescr, "; "), resp.Reasoning),
	})
	a.conv.Add(Message{
		Role:    model.RoleUser,
		Content: "Outcomes:\n" + joinStrings(summaryLines, "\n"),
	})
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func toModelMessages(msgs []Message) []model.Message {
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = model.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
