package engine

import (
	"regexp"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/errs"
)

// ActionKind classifies a parsed action string (spec.md §4.5.3).
type ActionKind string

const (
	ActionNoop          ActionKind = "noop"
	ActionExecutePrompt ActionKind = "execute_prompt"
	ActionSet           ActionKind = "set"
	ActionShell         ActionKind = "shell"
	ActionRunWorkflow   ActionKind = "run_workflow"
	ActionLog           ActionKind = "log"
)

// Action is one parsed step of an action string. A transition's action may
// chain several of these, separated by ";" (SPEC_FULL.md §C.3).
type Action struct {
	Kind    ActionKind
	Name    string            // prompt or workflow name
	Args    map[string]string // "with var=value ..." bindings
	Var     string            // target variable for "set"
	Expr    string            // expression source for "set"
	Command string            // shell command text
	Message string            // log message text
}

var (
	executePromptPattern = regexp.MustCompile(`^execute\s+prompt\s+"([^"]*)"(?:\s+with\s+(.*))?$`)
	setPattern            = regexp.MustCompile(`^set\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+)$`)
	shellPattern          = regexp.MustCompile(`^shell\s+"([^"]*)"$`)
	runWorkflowPattern    = regexp.MustCompile(`^run\s+workflow\s+"([^"]*)"(?:\s+with\s+(.*))?$`)
	logPattern            = regexp.MustCompile(`^log\s+"([^"]*)"$`)
	withArgPattern        = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)=(?:"([^"]*)"|(\S+))`)
)

// ParseActionChain splits action on top-level ";" and parses each segment.
// An empty or whitespace-only action is a single no-op (spec.md §4.5.3).
func ParseActionChain(action string) ([]Action, error) {
	segments := splitTopLevel(action, ';')
	if len(segments) == 0 {
		return []Action{{Kind: ActionNoop}}, nil
	}
	out := make([]Action, 0, len(segments))
	for _, seg := range segments {
		a, err := parseOneAction(strings.TrimSpace(seg))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside double-quoted
// substrings.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == sep && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if strings.TrimSpace(cur.String()) != "" || len(parts) > 0 {
		parts = append(parts, cur.String())
	}
	var trimmed []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}

func parseWithArgs(s string) map[string]string {
	args := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return args
	}
	for _, m := range withArgPattern.FindAllStringSubmatch(s, -1) {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		args[key] = val
	}
	return args
}

func parseOneAction(s string) (Action, error) {
	if s == "" {
		return Action{Kind: ActionNoop}, nil
	}

	if m := executePromptPattern.FindStringSubmatch(s); m != nil {
		return Action{Kind: ActionExecutePrompt, Name: m[1], Args: parseWithArgs(m[2])}, nil
	}
	if m := setPattern.FindStringSubmatch(s); m != nil {
		return Action{Kind: ActionSet, Var: m[1], Expr: m[2]}, nil
	}
	if m := shellPattern.FindStringSubmatch(s); m != nil {
		return Action{Kind: ActionShell, Command: m[1]}, nil
	}
	if m := runWorkflowPattern.FindStringSubmatch(s); m != nil {
		return Action{Kind: ActionRunWorkflow, Name: m[1], Args: parseWithArgs(m[2])}, nil
	}
	if m := logPattern.FindStringSubmatch(s); m != nil {
		return Action{Kind: ActionLog, Message: m[1]}, nil
	}

	return Action{}, errs.InvalidInput(s, "unrecognized action form")
}
