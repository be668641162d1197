// Package validator implements cross-cutting validation over loaded
// prompts and workflows (spec.md component C7). It never mutates either
// store; it only reads and reports.
package validator

import (
	"regexp"
	"sort"

	"github.com/osteele/liquid"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/prompts"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

// Level is the severity of one Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Issue is one finding against a single file.
type Issue struct {
	Level        Level  `json:"level"`
	FilePath     string `json:"file_path"`
	ContentTitle string `json:"content_title,omitempty"`
	Line         int    `json:"line,omitempty"`
	Column       int    `json:"column,omitempty"`
	Message      string `json:"message"`
	Suggestion   string `json:"suggestion,omitempty"`
}

// ValidationResult aggregates every issue found across a validation run.
type ValidationResult struct {
	FilesChecked int     `json:"files_checked"`
	Errors       int     `json:"errors"`
	Warnings     int     `json:"warnings"`
	Issues       []Issue `json:"issues"`
}

func (r *ValidationResult) add(i Issue) {
	r.Issues = append(r.Issues, i)
	if i.Level == LevelError {
		r.Errors++
	} else {
		r.Warnings++
	}
}

// ExitCode maps a ValidationResult to spec.md §7's CLI exit code policy.
func (r *ValidationResult) ExitCode() int {
	switch {
	case r.Errors > 0:
		return 2
	case r.Warnings > 0:
		return 1
	default:
		return 0
	}
}

// Validator runs validation over a prompt library and a workflow store.
type Validator struct {
	cfg *config.ValidatorConfig
}

// New creates a Validator.
func New(cfg *config.ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates every prompt in lib and every workflow in store,
// grouping issues by file (spec.md §4.7) and sorting them for stable output.
func (v *Validator) ValidateAll(lib *prompts.Library, store *workflow.Store) ValidationResult {
	var result ValidationResult

	for _, p := range lib.List() {
		result.FilesChecked++
		v.validatePrompt(p, lib, &result)
	}
	for _, w := range store.List() {
		result.FilesChecked++
		v.validateWorkflow(w, &result)
	}

	sort.SliceStable(result.Issues, func(i, j int) bool {
		return result.Issues[i].FilePath < result.Issues[j].FilePath
	})
	return result
}

var variableRefPattern = regexp.MustCompile(`\{\{-?\s*([A-Za-z_][A-Za-z0-9_]*)`)

// validatePrompt checks one prompt per spec.md §4.7: front matter parses
// (guaranteed by the time it reached the library -- LoadFile would have
// failed otherwise, so this re-validates title/description/argument
// coverage/parseability/partial resolution, which LoadFile does not check),
// title/description present (skipped for partials), every {{variable}}
// reference covered by an ArgumentSpec, the template parses, and every
// {% render %} partial exists.
func (v *Validator) validatePrompt(p *prompts.Prompt, lib *prompts.Library, result *ValidationResult) {
	path := p.SourcePath
	if path == "" {
		path = p.Name
	}

	if !p.IsPartial {
		if p.Title == "" {
			result.add(Issue{Level: LevelWarning, FilePath: path, ContentTitle: p.Name,
				Message: "prompt has no title", Suggestion: "add a title field to front matter"})
		}
		if p.Description == "" {
			result.add(Issue{Level: LevelWarning, FilePath: path, ContentTitle: p.Name,
				Message: "prompt has no description", Suggestion: "add a description field to front matter"})
		}
	}

	declared := map[string]bool{}
	for _, a := range p.Arguments {
		declared[a.Name] = true
	}
	for _, m := range variableRefPattern.FindAllStringSubmatch(p.Template, -1) {
		name := m[1]
		if !declared[name] {
			result.add(Issue{Level: LevelWarning, FilePath: path, ContentTitle: p.Name,
				Message:    "template references undeclared variable \"" + name + "\"",
				Suggestion: "add an argument named \"" + name + "\" or remove the reference"})
		}
	}

	if _, err := liquid.NewEngine().ParseString(p.Template); err != nil {
		result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: p.Name,
			Message: "template failed to parse: " + err.Error()})
	}

	for _, ref := range renderTagPattern.FindAllStringSubmatch(p.Template, -1) {
		if _, err := lib.Get(ref[1]); err != nil {
			result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: p.Name,
				Message: "referenced partial \"" + ref[1] + "\" does not exist"})
		}
	}
}

var renderTagPattern = regexp.MustCompile(`\{%-?\s*render\s+["']([^"']+)["']\s*-?%\}`)

// validateWorkflow checks one workflow per spec.md §4.7: initial state
// exists, every transition endpoint exists, at least one terminal state,
// at least one terminal state reachable from initial (hard error, always —
// distinct from the policy-gated reachability of every other state), every
// state reachable from initial per UnreachableIsError, and complexity under
// the configured max.
func (v *Validator) validateWorkflow(w *workflow.Workflow, result *ValidationResult) {
	path := w.Name + ".mermaid"

	if w.InitialState == "" {
		result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
			Message: "workflow has no initial state"})
	} else if _, ok := w.States[w.InitialState]; !ok {
		result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
			Message: "initial state \"" + w.InitialState + "\" is not defined"})
	}

	for i, t := range w.Transitions {
		if _, ok := w.States[t.From]; !ok {
			result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
				Line: i, Message: "transition references undefined source state \"" + t.From + "\""})
		}
		if _, ok := w.States[t.To]; !ok {
			result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
				Line: i, Message: "transition references undefined target state \"" + t.To + "\""})
		}
	}

	if len(w.TerminalStates()) == 0 {
		result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
			Message: "workflow has no terminal state"})
	}

	unreachable := unreachableStates(w)
	level := LevelWarning
	if v.cfg.UnreachableIsError {
		level = LevelError
	}
	unreachableSet := make(map[string]bool, len(unreachable))
	for _, id := range unreachable {
		unreachableSet[id] = true
		result.add(Issue{Level: level, FilePath: path, ContentTitle: w.Name,
			Message: "state \"" + id + "\" is not reachable from the initial state"})
	}

	terminalReachable := false
	for _, id := range w.TerminalStates() {
		if !unreachableSet[id] {
			terminalReachable = true
			break
		}
	}
	if !terminalReachable && len(w.TerminalStates()) > 0 {
		result.add(Issue{Level: LevelError, FilePath: path, ContentTitle: w.Name,
			Message: "no terminal state is reachable from the initial state"})
	}

	complexity := len(w.States) + len(w.Transitions)
	max := v.cfg.MaxWorkflowComplexity
	if max > 0 && complexity > max {
		result.add(Issue{Level: LevelWarning, FilePath: path, ContentTitle: w.Name,
			Message: "workflow complexity (states + transitions) exceeds configured maximum",
			Suggestion: "split this workflow into smaller sub-workflows invoked via \"run workflow\""})
	}
}

// unreachableStates returns every state id not reachable from w.InitialState
// by a breadth-first walk of the transition graph.
func unreachableStates(w *workflow.Workflow) []string {
	if w.InitialState == "" {
		return nil
	}
	visited := map[string]bool{w.InitialState: true}
	queue := []string{w.InitialState}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range w.TransitionsFrom(id) {
			if !visited[t.To] {
				visited[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}

	var out []string
	for id := range w.States {
		if !visited[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
