package workflow

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wballard/swissarmyhammer/internal/errs"
)

// mermaidFrontMatter carries optional name/description metadata, matching
// the prompt library's own front-matter convention (spec.md §4.4).
type mermaidFrontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

var (
	transitionPattern = regexp.MustCompile(`^(\S+)\s*-->\s*(\S+)\s*(?::\s*(.*))?$`)
	noteStatePattern  = regexp.MustCompile(`^note\s+(?:left of|right of)\s+(\S+)\s*:\s*(.*)$`)
)

// ParseMermaid parses a stateDiagram-v2 document with optional leading YAML
// front matter into a Workflow named by name (overridden by front matter's
// own "name" field, if present).
func ParseMermaid(name, content string) (*Workflow, error) {
	raw, body := splitFrontMatterYAML(content)

	w := &Workflow{
		Name:     name,
		States:   make(map[string]*State),
		Metadata: make(map[string]string),
	}

	if raw != "" {
		var fm mermaidFrontMatter
		if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, name, err)
		}
		if fm.Name != "" {
			w.Name = fm.Name
		}
		w.Description = fm.Description
	}

	lines := strings.Split(body, "\n")
	ensureState := func(id string) *State {
		if s, ok := w.States[id]; ok {
			return s
		}
		s := &State{ID: id, Type: StateNormal, Metadata: make(map[string]string)}
		w.States[id] = s
		return s
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || line == "stateDiagram-v2" || line == "stateDiagram" || strings.HasPrefix(line, "%%") {
			continue
		}

		if m := noteStatePattern.FindStringSubmatch(line); m != nil {
			ensureState(m[1]).Description = strings.TrimSpace(m[2])
			continue
		}

		m := transitionPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		from, to, label := m[1], m[2], strings.TrimSpace(m[3])

		switch {
		case from == "[*]":
			w.InitialState = to
			ensureState(to)
			continue
		case to == "[*]":
			ensureState(from).IsTerminal = true
			continue
		}

		ensureState(from)
		ensureState(to)

		condition, action := splitLabel(label)
		w.Transitions = append(w.Transitions, Transition{From: from, To: to, Condition: condition, Action: action})
	}

	if w.InitialState == "" {
		return nil, errs.InvalidInput(name, "missing initial state marker \"[*] --> <state>\"")
	}

	return w, nil
}

// splitLabel parses a mermaid transition label of the form
// "<condition> / <action>" (both optional).
func splitLabel(label string) (condition, action string) {
	if label == "" {
		return "", ""
	}
	idx := strings.Index(label, "/")
	if idx < 0 {
		return strings.TrimSpace(label), ""
	}
	condition = strings.TrimSpace(label[:idx])
	action = strings.TrimSpace(label[idx+1:])
	return condition, action
}

// SerializeMermaid renders a Workflow back to the stateDiagram-v2 dialect,
// the inverse of ParseMermaid, so store_workflow can persist edits made
// in-memory.
func SerializeMermaid(w *Workflow) string {
	var b strings.Builder

	if w.Description != "" || w.Name != "" {
		b.WriteString("---\n")
		if w.Name != "" {
			b.WriteString("name: " + w.Name + "\n")
		}
		if w.Description != "" {
			b.WriteString("description: " + w.Description + "\n")
		}
		b.WriteString("---\n")
	}

	b.WriteString("stateDiagram-v2\n")
	b.WriteString("  [*] --> " + w.InitialState + "\n")
	for _, t := range w.Transitions {
		label := formatLabel(t.Condition, t.Action)
		if label == "" {
			b.WriteString("  " + t.From + " --> " + t.To + "\n")
		} else {
			b.WriteString("  " + t.From + " --> " + t.To + " : " + label + "\n")
		}
	}
	for id, s := range w.States {
		if s.IsTerminal {
			b.WriteString("  " + id + " --> [*]\n")
		}
	}
	return b.String()
}

func formatLabel(condition, action string) string {
	switch {
	case condition == "" && action == "":
		return ""
	case action == "":
		return condition
	default:
		return condition + " / " + action
	}
}

// splitFrontMatterYAML mirrors prompts.splitFrontMatter without introducing
// a cross-package dependency between prompts and workflow.
func splitFrontMatterYAML(content string) (raw string, body string) {
	const delim = "---"
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, delim) {
		return "", content
	}
	rest := strings.TrimPrefix(trimmed, delim)
	rest = strings.TrimPrefix(rest, "\r")
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return "", content
	}
	raw = rest[:idx]
	after := rest[idx+len("\n"+delim):]
	after = strings.TrimPrefix(after, "\r")
	after = strings.TrimPrefix(after, "\n")
	return raw, after
}
