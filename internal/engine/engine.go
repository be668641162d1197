package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/prompts"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

// Mode selects one of the four execution modes of spec.md §4.5.4.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeDryRun      Mode = "dry_run"
	ModeTest        Mode = "test"
	ModeInteractive Mode = "interactive"
)

// Event is emitted in interactive mode after each state transition.
type Event struct {
	Kind     string
	StateID  string
	Occurred time.Time
}

// RunOptions configures one Run/Resume call.
type RunOptions struct {
	Mode              Mode
	TimeoutSeconds    int
	InteractiveEvents chan<- Event
	InteractiveAck    <-chan struct{}
}

// CoverageReport is produced in Test mode (spec.md §4.5.4).
type CoverageReport struct {
	StateEntries         map[string]int
	TransitionFires      map[int]int
	UnvisitedStates      []string
	UnvisitedTransitions []int
}

// DryRunStep is one entry of a dry-run execution plan.
type DryRunStep struct {
	State string
	To    string
}

// CancelToken is set-once, observable-many (spec.md §4.5.5).
type CancelToken struct {
	mu        sync.Mutex
	cancelled bool
}

// Cancel marks the token cancelled. Idempotent.
func (c *CancelToken) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

// IsCancelled reports the current state.
func (c *CancelToken) IsCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// hardStepCap is a DoS guard independent of config: the configured
// MaxExecutionSteps is clamped to it, and it applies when that is unset.
const hardStepCap = 100000

// Engine interprets loaded workflows against the prompt library, issue
// store-adjacent side effects, and sub-workflow recursion.
type Engine struct {
	cfg       *config.Config
	log       arbor.ILogger
	prompts   *prompts.Library
	workflows *workflow.Store
	runs      *workflow.RunStore

	mu     sync.Mutex
	tokens map[string]*CancelToken
}

// New creates an Engine.
func New(cfg *config.Config, log arbor.ILogger, lib *prompts.Library, wfStore *workflow.Store, runStore *workflow.RunStore) *Engine {
	return &Engine{
		cfg: cfg, log: log, prompts: lib, workflows: wfStore, runs: runStore,
		tokens: make(map[string]*CancelToken),
	}
}

// Cancel requests cancellation of an in-flight run. A no-op if the run is
// unknown or already terminal.
func (e *Engine) Cancel(runID string) {
	e.mu.Lock()
	token, ok := e.tokens[runID]
	e.mu.Unlock()
	if ok {
		token.Cancel()
	}
}

func (e *Engine) registerToken(runID string) *CancelToken {
	token := &CancelToken{}
	e.mu.Lock()
	e.tokens[runID] = token
	e.mu.Unlock()
	return token
}

func (e *Engine) unregisterToken(runID string) {
	e.mu.Lock()
	delete(e.tokens, runID)
	e.mu.Unlock()
}

// DryRun eagerly evaluates conditions against the initial variables, without
// executing any action, producing the (state, would-transition) sequence.
// Fails if a condition depends on a variable only produced at runtime: any
// outgoing condition that references an identifier absent from vars (other
// than true/false/null/nil) fails the dry run with InvalidInput.
func (e *Engine) DryRun(workflowName string, vars map[string]interface{}) ([]DryRunStep, error) {
	w, err := e.workflows.Get(workflowName)
	if err != nil {
		return nil, err
	}
	w = w.Clone()

	var plan []DryRunStep
	current := w.InitialState
	visited := make(map[string]bool)

	for steps := 0; steps < e.maxSteps(); steps++ {
		if visited[current] {
			break
		}
		state, ok := w.States[current]
		if !ok {
			return plan, errs.InvalidInput(current, "unknown state")
		}
		if state.IsTerminal {
			break
		}
		visited[current] = true

		for _, t := range w.TransitionsFrom(current) {
			toks, _ := tokenizeCondition(t.Condition) // syntax errors surface from selectTransition below
			for _, tok := range toks {
				_, known := vars[tok.text]
				switch {
				case tok.kind != tokIdent, known, tok.text == "true", tok.text == "false", tok.text == "null", tok.text == "nil":
					continue
				}
				return plan, errs.InvalidInput(tok.text, "condition depends on a variable only produced at runtime")
			}
		}

		chosen, err := selectTransition(w, current, vars)
		if err != nil {
			return plan, err
		}
		if chosen == nil {
			plan = append(plan, DryRunStep{State: current, To: ""})
			break
		}
		plan = append(plan, DryRunStep{State: current, To: chosen.To})
		current = chosen.To
	}
	return plan, nil
}

func (e *Engine) maxSteps() int {
	n := e.cfg.Engine.MaxExecutionSteps
	if n <= 0 || n > hardStepCap {
		return hardStepCap
	}
	return n
}

// selectTransition implements spec.md §4.5.2: declaration-order evaluation,
// first truthy condition wins, unconditional fallback must be last.
func selectTransition(w *workflow.Workflow, stateID string, vars map[string]interface{}) (*workflow.Transition, error) {
	candidates := w.TransitionsFrom(stateID)
	state := w.States[stateID]

	truthyCount := 0
	var chosen *workflow.Transition
	for i := range candidates {
		t := &candidates[i]
		ok, err := EvalCondition(t.Condition, vars)
		if err != nil {
			return nil, err
		}
		if ok {
			truthyCount++
			if chosen == nil {
				chosen = t
			}
		}
	}

	if state != nil && state.Type == workflow.StateChoice && state.ExactlyOneBranch && truthyCount > 1 {
		return nil, errs.InvalidInput(stateID, "choice state requires exactly one truthy branch")
	}

	return chosen, nil
}

// Run starts a new WorkflowRun and drives it to a terminal status, a
// timeout, or a cancellation, per the execution loop of spec.md §4.5.1.
func (e *Engine) Run(ctx context.Context, workflowName string, initialVars map[string]interface{}, opts RunOptions) (*workflow.WorkflowRun, *CoverageReport, error) {
	w, err := e.workflows.Get(workflowName)
	if err != nil {
		return nil, nil, err
	}
	snapshot := *w.Clone()

	vars := make(map[string]interface{}, len(initialVars))
	for k, v := range initialVars {
		vars[k] = v
	}

	run := &workflow.WorkflowRun{
		ID:           workflow.NewRunID(),
		Workflow:     snapshot,
		CurrentState: snapshot.InitialState,
		Status:       workflow.StatusRunning,
		StartedAt:    time.Now(),
		Variables:    vars,
	}
	if opts.TimeoutSeconds > 0 {
		deadline := run.StartedAt.Add(time.Duration(opts.TimeoutSeconds) * time.Second)
		run.DeadlineAt = &deadline
	}

	return e.drive(ctx, run, opts)
}

// Resume re-hydrates a persisted run and re-enters the loop from its
// recorded current state. The on-entry action of that state is not
// replayed.
func (e *Engine) Resume(ctx context.Context, runID string, opts RunOptions) (*workflow.WorkflowRun, *CoverageReport, error) {
	run, err := e.runs.GetRun(runID)
	if err != nil {
		return nil, nil, err
	}
	if run.Status.IsTerminal() {
		return nil, nil, errs.New(errs.KindAlreadyTerminal, runID)
	}
	return e.drive(ctx, run, opts)
}

// drive runs the execution loop and persists the run once, after the loop
// ends; every exit from the loop leaves the run in a terminal status.
func (e *Engine) drive(ctx context.Context, run *workflow.WorkflowRun, opts RunOptions) (*workflow.WorkflowRun, *CoverageReport, error) {
	token := e.registerToken(run.ID)
	defer e.unregisterToken(run.ID)

	w := &run.Workflow

	var coverage *CoverageReport
	if opts.Mode == ModeTest {
		coverage = &CoverageReport{
			StateEntries:    make(map[string]int),
			TransitionFires: make(map[int]int),
		}
	}

	skipOnEntry := len(run.History) > 0 // resumed runs don't replay on-entry
	pendingAction := ""

	for steps := 0; steps < e.maxSteps(); steps++ {
		if token.IsCancelled() {
			run.Status = workflow.StatusCancelled
			run.Cancelled = true
			break
		}
		if run.DeadlineAt != nil && time.Now().After(*run.DeadlineAt) {
			run.Status = workflow.StatusFailed
			run.FailureKind = string(errs.KindTimeout)
			break
		}

		state, ok := w.States[run.CurrentState]
		if !ok {
			run.Status = workflow.StatusFailed
			run.FailureKind = string(errs.KindInvalidInput)
			break
		}

		now := time.Now()
		run.History = append(run.History, workflow.HistoryEntry{StateID: state.ID, EnteredAt: now})
		if coverage != nil {
			coverage.StateEntries[state.ID]++
		}

		if !skipOnEntry {
			if pendingAction != "" {
				if err := e.dispatchActionString(ctx, pendingAction, run, opts); err != nil {
					e.failRun(run, err)
					break
				}
			}
		}
		skipOnEntry = false
		pendingAction = ""

		e.closeHistoryEntry(run, "")

		if state.IsTerminal {
			run.Status = workflow.StatusCompleted
			break
		}

		if token.IsCancelled() {
			run.Status = workflow.StatusCancelled
			run.Cancelled = true
			break
		}
		if run.DeadlineAt != nil && time.Now().After(*run.DeadlineAt) {
			run.Status = workflow.StatusFailed
			run.FailureKind = string(errs.KindTimeout)
			break
		}

		chosen, err := selectTransition(w, state.ID, run.Variables)
		if err != nil {
			e.failRun(run, err)
			break
		}
		if chosen == nil {
			run.Status = workflow.StatusFailed
			run.FailureKind = string(errs.KindNoTransition)
			break
		}
		if coverage != nil {
			for i := range w.Transitions {
				if w.Transitions[i] == *chosen {
					coverage.TransitionFires[i]++
					break
				}
			}
		}

		run.CurrentState = chosen.To
		pendingAction = chosen.Action

		if opts.Mode == ModeInteractive {
			if opts.InteractiveEvents != nil {
				opts.InteractiveEvents <- Event{Kind: "state_entered", StateID: chosen.To, Occurred: time.Now()}
			}
			if opts.InteractiveAck != nil {
				select {
				case <-opts.InteractiveAck:
				case <-ctx.Done():
					run.Status = workflow.StatusCancelled
					run.Cancelled = true
				}
				if run.Status == workflow.StatusCancelled {
					break
				}
			}
		}
	}

	if coverage != nil {
		coverage.UnvisitedStates, coverage.UnvisitedTransitions = unvisited(w, coverage)
	}

	if run.Status == workflow.StatusRunning {
		run.Status = workflow.StatusFailed
		run.FailureKind = "step_limit_exceeded"
	}

	if run.Status.IsTerminal() {
		completed := time.Now()
		run.CompletedAt = &completed
	}

	if err := e.runs.StoreRun(run); err != nil {
		return run, coverage, err
	}
	return run, coverage, nil
}

func (e *Engine) closeHistoryEntry(run *workflow.WorkflowRun, outcome string) {
	if len(run.History) == 0 {
		return
	}
	last := &run.History[len(run.History)-1]
	if last.ExitedAt == nil {
		now := time.Now()
		last.ExitedAt = &now
		last.Outcome = outcome
	}
}

func (e *Engine) failRun(run *workflow.WorkflowRun, err error) {
	run.Status = workflow.StatusFailed
	run.FailureKind = string(errs.KindOf(err))
	if run.FailureKind == "" {
		run.FailureKind = string(errs.KindActionFailed)
	}
	e.closeHistoryEntry(run, "error")
}

func unvisited(w *workflow.Workflow, coverage *CoverageReport) ([]string, []int) {
	var states []string
	for id := range w.States {
		if coverage.StateEntries[id] == 0 {
			states = append(states, id)
		}
	}
	var transitions []int
	for i := range w.Transitions {
		if coverage.TransitionFires[i] == 0 {
			transitions = append(transitions, i)
		}
	}
	return states, transitions
}

// dispatchActionString parses and executes one (possibly chained) action
// string, also used for transition actions.
func (e *Engine) dispatchActionString(ctx context.Context, actionStr string, run *workflow.WorkflowRun, opts RunOptions) error {
	actions, err := ParseActionChain(actionStr)
	if err != nil {
		return err
	}
	for _, a := range actions {
		if err := e.dispatchOne(ctx, a, run, opts); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dispatchOne(ctx context.Context, a Action, run *workflow.WorkflowRun, opts RunOptions) error {
	test := opts.Mode == ModeTest

	switch a.Kind {
	case ActionNoop:
		return nil

	case ActionSet:
		val, err := EvalExpr(a.Expr, run.Variables)
		if err != nil {
			return err
		}
		run.Variables[a.Var] = val
		return nil

	case ActionExecutePrompt:
		if test {
			run.Variables["result"] = "stub:" + a.Name
			return nil
		}
		args := resolveArgs(a.Args, run.Variables)
		out, err := e.prompts.Render(a.Name, args, e.cfg.Prompts.EnvFallback)
		if err != nil {
			return errs.Wrap(errs.KindActionFailed, a.Name, err)
		}
		run.Variables["result"] = out
		return nil

	case ActionShell:
		if test {
			run.Variables["result"] = a.Command
			return nil
		}
		out, err := runShell(ctx, a.Command)
		if err != nil {
			return errs.Wrap(errs.KindActionFailed, a.Command, err)
		}
		run.Variables["result"] = out
		return nil

	case ActionRunWorkflow:
		if test {
			run.Variables["result"] = map[string]interface{}{"stub": true}
			return nil
		}
		args := resolveArgs(a.Args, run.Variables)
		subVars := make(map[string]interface{}, len(args))
		for k, v := range args {
			subVars[k] = v
		}
		subRun, _, err := e.Run(ctx, a.Name, subVars, RunOptions{Mode: opts.Mode})
		if err != nil {
			return errs.Wrap(errs.KindActionFailed, a.Name, err)
		}
		for k, v := range subRun.Variables {
			run.Variables[k] = v
		}
		return nil

	case ActionLog:
		e.log.Info().Str("run_id", run.ID).Str("message", a.Message).Msg("workflow log action")
		return nil
	}
	return nil
}

func resolveArgs(args map[string]string, vars map[string]interface{}) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		if strings.HasPrefix(v, "$") {
			if resolved, ok := vars[v[1:]]; ok {
				out[k] = toStringValue(resolved)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func toStringValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func runShell(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}
