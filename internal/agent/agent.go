// Package agent runs the observe-decide-act loop: capture the screen, ask
// the vision model, parse and validate its reply, execute on the device,
// and decide whether to continue. Model text is data end to end; the only
// things that ever execute are whitelisted, validated commands.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/phonepilot/internal/action"
	"github.com/openclaw/phonepilot/internal/config"
	"github.com/openclaw/phonepilot/internal/device"
	"github.com/openclaw/phonepilot/internal/logging"
	"github.com/openclaw/phonepilot/internal/session"
	"github.com/openclaw/phonepilot/internal/vlm"
)

// State is the loop's position in its step cycle.
type State string

const (
	StateInit                 State = "init"
	StatePreflight            State = "preflight"
	StateObserving            State = "observing"
	StateAwaitingModel        State = "awaiting_model"
	StateParsing              State = "parsing"
	StateValidating           State = "validating"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateDeciding             State = "deciding"
	StateCompleted            State = "completed"
	StateMaxStepsExceeded     State = "max_steps_exceeded"
	StateTakenOver            State = "taken_over"
	StateAborted              State = "aborted"
)

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateMaxStepsExceeded, StateTakenOver, StateAborted:
		return true
	}
	return false
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID    string               `json:"run_id,omitempty"`
	Status   string               `json:"status"`
	Summary  string               `json:"summary,omitempty"`
	Issues   []string             `json:"issues,omitempty"`
	Steps    []session.StepRecord `json:"steps"`
	Duration time.Duration        `json:"duration"`
}

// Confirmer decides whether a sensitive command may execute. A false reply
// or an error hands the run to the human.
type Confirmer func(ctx context.Context, cmd *action.Command) (bool, error)

// Agent drives one device toward natural-language goals. One agent owns
// one device handle; concurrent runs need separate agents.
type Agent struct {
	cfg       config.AgentConfig
	provider  vlm.Provider
	executor  *device.Executor
	checker   *device.Checker
	sessions  *session.Manager
	confirm   Confirmer
	sensitive map[action.Kind]bool
	deviceID  string
	log       *logging.Logger

	state State
}

// Option configures optional collaborators.
type Option func(*Agent)

// WithChecker attaches preflight device diagnostics.
func WithChecker(c *device.Checker) Option {
	return func(a *Agent) { a.checker = c }
}

// WithSessions attaches run persistence.
func WithSessions(m *session.Manager) Option {
	return func(a *Agent) { a.sessions = m }
}

// WithConfirmer attaches the sensitive-action gate.
func WithConfirmer(c Confirmer) Option {
	return func(a *Agent) { a.confirm = c }
}

// WithDeviceID records which device serial the run targets.
func WithDeviceID(id string) Option {
	return func(a *Agent) { a.deviceID = id }
}

// New builds an agent. Provider and executor are required; everything else
// is optional.
func New(cfg config.AgentConfig, provider vlm.Provider, executor *device.Executor, log *logging.Logger, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent requires a model provider")
	}
	if executor == nil {
		return nil, fmt.Errorf("agent requires a device executor")
	}
	if log == nil {
		log = logging.New()
	}

	a := &Agent{
		cfg:       cfg,
		provider:  provider,
		executor:  executor,
		sensitive: map[action.Kind]bool{},
		log:       log.WithComponent("agent"),
		state:     StateInit,
	}
	for _, name := range cfg.SensitiveActions {
		kind := action.NormalizeKind(name)
		if kind == "" {
			return nil, fmt.Errorf("unknown sensitive action %q", name)
		}
		a.sensitive[kind] = true
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// State returns the loop's current state.
func (a *Agent) State() State {
	return a.state
}

func (a *Agent) setState(s State) {
	a.state = s
	a.log.Debug("state transition", map[string]interface{}{"state": string(s)})
}

// Run drives the device toward the goal until the model finishes, the step
// budget runs out, a human takes over, or the run aborts.
func (a *Agent) Run(ctx context.Context, goal string) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Status: session.StatusAborted}

	var runID string
	if a.sessions != nil {
		run, err := a.sessions.Create(goal, a.deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to create run record: %w", err)
		}
		runID = run.ID
		result.RunID = runID
		a.log = a.log.WithRunID(runID)
	}

	a.log.RunStart(goal, a.cfg.MaxSteps)
	defer func() {
		result.Duration = time.Since(start)
		a.log.RunComplete(result.Status, len(result.Steps), result.Duration)
		if a.sessions != nil && runID != "" {
			a.sessions.Finish(runID, result.Status, result.Summary, strings.Join(result.Issues, "; "))
		}
	}()

	if !a.preflight(ctx, result) {
		return result, nil
	}

	feedback := ""
	badResponses := 0
	failedSteps := 0

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		if ctx.Err() != nil {
			a.abort(result, "run cancelled")
			return result, nil
		}
		a.log.StepStart(step)
		stepStart := time.Now()
		record := session.StepRecord{Index: step, Timestamp: stepStart}

		// Observe.
		a.setState(StateObserving)
		screenshot, obs := a.observe(ctx)
		if !obs.OK {
			if ctx.Err() != nil {
				a.abort(result, "run cancelled")
				return result, nil
			}
			record.FailureKind = string(obs.Kind)
			a.finishStep(runID, result, &record, stepStart)
			a.abort(result, fmt.Sprintf("screen capture failed (%s)", obs.Kind))
			return result, nil
		}

		// Ask the model.
		a.setState(StateAwaitingModel)
		raw, err := a.provider.NextAction(ctx, goal, vlm.Observation{
			Screenshot: screenshot,
			StepIndex:  step,
			Feedback:   feedback,
		})
		if err != nil {
			if ctx.Err() != nil {
				a.abort(result, "run cancelled")
				return result, nil
			}
			a.abort(result, fmt.Sprintf("model unavailable: %v", err))
			return result, nil
		}
		record.RawReply = raw

		// Parse.
		a.setState(StateParsing)
		fields, err := action.Parse(raw)
		if err != nil {
			badResponses++
			a.log.ValidationRejected("unparsable reply", badResponses)
			feedback = "Your previous reply was not a recognizable action call. Reply with exactly one do(...) or finish(...) call."
			a.finishStep(runID, result, &record, stepStart)
			if a.tooManyBadResponses(badResponses, result) {
				return result, nil
			}
			continue
		}
		record.Parsed = true

		// Validate.
		a.setState(StateValidating)
		cmd, vres := action.Validate(fields)
		if !vres.Valid {
			badResponses++
			record.ValidationReason = vres.Reason
			a.log.ValidationRejected(vres.Reason, badResponses)
			feedback = fmt.Sprintf("Your previous action was rejected: %s.", vres.Reason)
			a.finishStep(runID, result, &record, stepStart)
			if a.tooManyBadResponses(badResponses, result) {
				return result, nil
			}
			continue
		}
		badResponses = 0
		record.Action = string(cmd.Kind)
		if data, err := json.Marshal(cmd); err == nil {
			record.CommandJSON = string(data)
		}

		// Terminal commands never touch the device.
		switch cmd.Kind {
		case action.KindFinish:
			record.ExecutedOK = true
			a.finishStep(runID, result, &record, stepStart)
			a.setState(StateCompleted)
			result.Status = session.StatusCompleted
			result.Summary = cmd.Message
			return result, nil
		case action.KindTakeOver:
			record.ExecutedOK = true
			a.finishStep(runID, result, &record, stepStart)
			a.setState(StateTakenOver)
			result.Status = session.StatusTakenOver
			result.Summary = cmd.Message
			return result, nil
		}

		// Confirmation gate for sensitive actions.
		if a.sensitive[cmd.Kind] {
			a.setState(StateAwaitingConfirmation)
			approved := a.confirmCommand(ctx, cmd)
			record.Confirmed = &approved
			if !approved {
				a.finishStep(runID, result, &record, stepStart)
				a.setState(StateTakenOver)
				result.Status = session.StatusTakenOver
				result.Summary = fmt.Sprintf("%s was not confirmed", cmd.Kind)
				return result, nil
			}
		}

		// Execute.
		if cmd.Kind == action.KindWait {
			// Wait is a loop-side pause, not a device command.
			a.setState(StateExecuting)
			if !a.sleep(ctx, cmd.Duration) {
				a.abort(result, "run cancelled")
				return result, nil
			}
			record.ExecutedOK = true
			feedback = fmt.Sprintf("Waited %s.", cmd.Duration)
		} else {
			a.setState(StateExecuting)
			out := a.executor.Apply(ctx, cmd)
			record.ExecutedOK = out.OK
			record.Attempts = out.Attempts
			if !out.OK {
				record.FailureKind = string(out.Kind)
			}
			a.log.StepComplete(step, string(cmd.Kind), out.OK, time.Since(stepStart))

			if ctx.Err() != nil {
				a.finishStep(runID, result, &record, stepStart)
				a.abort(result, "run cancelled")
				return result, nil
			}
			if out.Kind == device.ConnectionLost {
				a.finishStep(runID, result, &record, stepStart)
				a.abort(result, "device connection lost")
				return result, nil
			}
			if out.OK {
				failedSteps = 0
				feedback = fmt.Sprintf("%s succeeded.", cmd.Kind)
			} else {
				failedSteps++
				feedback = fmt.Sprintf("%s failed (%s). The screen may not have changed.", cmd.Kind, out.Kind)
				if failedSteps > a.cfg.BadResponseThreshold {
					a.finishStep(runID, result, &record, stepStart)
					a.abort(result, fmt.Sprintf("%d consecutive device failures", failedSteps))
					return result, nil
				}
			}
		}

		a.setState(StateDeciding)
		a.finishStep(runID, result, &record, stepStart)

		if delay := time.Duration(a.cfg.StepDelayMS) * time.Millisecond; delay > 0 {
			if !a.sleep(ctx, delay) {
				a.abort(result, "run cancelled")
				return result, nil
			}
		}
	}

	a.setState(StateMaxStepsExceeded)
	result.Status = session.StatusMaxStepsExceeded
	result.Summary = fmt.Sprintf("goal not reached within %d steps", a.cfg.MaxSteps)
	return result, nil
}

// preflight checks device readiness once before the first step, attempting
// a wake and swipe-unlock before giving up.
func (a *Agent) preflight(ctx context.Context, result *RunResult) bool {
	if a.checker == nil {
		return true
	}
	a.setState(StatePreflight)

	state := a.checker.Check(ctx)
	if state.Screen == device.ScreenOff && state.Connected {
		a.checker.WakeScreen(ctx)
		state = a.checker.Check(ctx)
	}
	if state.Lock == device.Locked && state.Connected {
		a.checker.UnlockScreen(ctx)
		state = a.checker.Check(ctx)
	}

	issues := state.Issues()
	a.log.PreflightResult(state.Ready(), issues)
	if !state.Ready() {
		result.Issues = append(result.Issues, issues...)
		result.Summary = "device not ready"
		a.setState(StateAborted)
		return false
	}
	return true
}

// observe captures the screen. The capture retries internally; once those
// retries are exhausted the run cannot continue, since every decision
// depends on seeing the device.
func (a *Agent) observe(ctx context.Context) ([]byte, device.Outcome) {
	png, out := a.executor.CaptureScreenshot(ctx)
	if !out.OK {
		a.log.Warn("screenshot capture failed", map[string]interface{}{"kind": string(out.Kind)})
		return nil, out
	}
	return png, out
}

func (a *Agent) confirmCommand(ctx context.Context, cmd *action.Command) bool {
	a.log.ConfirmationRequested(string(cmd.Kind))
	if a.confirm == nil {
		approved := a.cfg.ConfirmDefault == "approve"
		a.log.ConfirmationResult(string(cmd.Kind), approved)
		return approved
	}
	approved, err := a.confirm(ctx, cmd)
	if err != nil {
		a.log.Warn("confirmation failed", map[string]interface{}{"error": err.Error()})
		approved = false
	}
	a.log.ConfirmationResult(string(cmd.Kind), approved)
	return approved
}

// tooManyBadResponses aborts once the consecutive bad-reply count exceeds
// the threshold: with threshold 3, the 4th bad reply in a row ends the run.
func (a *Agent) tooManyBadResponses(count int, result *RunResult) bool {
	if count <= a.cfg.BadResponseThreshold {
		return false
	}
	a.abort(result, fmt.Sprintf("%d consecutive unusable model replies", count))
	return true
}

func (a *Agent) abort(result *RunResult, reason string) {
	a.setState(StateAborted)
	result.Status = session.StatusAborted
	result.Issues = append(result.Issues, reason)
	if result.Summary == "" {
		result.Summary = reason
	}
}

// finishStep stamps the duration and records the step in the result and the
// session store.
func (a *Agent) finishStep(runID string, result *RunResult, record *session.StepRecord, start time.Time) {
	record.Duration = time.Since(start)
	result.Steps = append(result.Steps, *record)
	if a.sessions != nil && runID != "" {
		if err := a.sessions.AddStep(runID, *record); err != nil {
			a.log.Warn("failed to persist step", map[string]interface{}{"error": err.Error()})
		}
	}
}

// sleep pauses without blocking shutdown. Returns false when cancelled.
func (a *Agent) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
