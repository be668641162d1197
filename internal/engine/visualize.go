package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

// VisualizeOptions controls rendering detail for Visualize.
type VisualizeOptions struct {
	Timing   bool
	Counts   bool
	PathOnly bool
}

const (
	maxFullPathSteps = 1000
	maxPathOnlySteps = 100
)

// Visualize renders a run's traversed path in one of four dialects: mermaid,
// dot, html, json. PathOnly renders only the visited-state sequence, capped
// at maxPathOnlySteps; otherwise the full annotated trace is capped at
// maxFullPathSteps. A truncated trace is marked in every dialect: a
// "path truncated" comment (mermaid, dot), an ellipsis item (html), or the
// "truncated" field (json).
func Visualize(run *workflow.WorkflowRun, dialect string, opts VisualizeOptions) (string, error) {
	limit := maxFullPathSteps
	if opts.PathOnly {
		limit = maxPathOnlySteps
	}
	history := run.History
	truncated := false
	if len(history) > limit {
		history = history[:limit]
		truncated = true
	}

	switch strings.ToLower(dialect) {
	case "mermaid":
		return visualizeMermaid(run, history, opts, truncated), nil
	case "dot":
		return visualizeDot(run, history, opts, truncated), nil
	case "html":
		return visualizeHTML(run, history, opts, truncated), nil
	case "json":
		return visualizeJSON(run, history, opts, truncated)
	default:
		return "", errs.InvalidInput(dialect, "unsupported visualize dialect")
	}
}

func visualizeMermaid(run *workflow.WorkflowRun, history []workflow.HistoryEntry, opts VisualizeOptions, truncated bool) string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	if len(history) > 0 {
		fmt.Fprintf(&b, "  [*] --> %s\n", history[0].StateID)
	}
	for i := 0; i < len(history)-1; i++ {
		from, to := history[i], history[i+1]
		if opts.PathOnly {
			fmt.Fprintf(&b, "  %s --> %s\n", from.StateID, to.StateID)
			continue
		}
		label := ""
		if opts.Timing && from.ExitedAt != nil {
			label = fmt.Sprintf(" : %s", from.ExitedAt.Sub(from.EnteredAt))
		}
		fmt.Fprintf(&b, "  %s --> %s%s\n", from.StateID, to.StateID, label)
	}
	if len(history) > 0 && run.Status == workflow.StatusCompleted {
		fmt.Fprintf(&b, "  %s --> [*]\n", history[len(history)-1].StateID)
	}
	if opts.Counts {
		fmt.Fprintf(&b, "  note right of %s : %d states visited\n", run.CurrentState, len(history))
	}
	if truncated {
		b.WriteString("  %% path truncated\n")
	}
	return b.String()
}

func visualizeDot(run *workflow.WorkflowRun, history []workflow.HistoryEntry, opts VisualizeOptions, truncated bool) string {
	var b strings.Builder
	b.WriteString("digraph run {\n")
	for i := 0; i < len(history)-1; i++ {
		from, to := history[i], history[i+1]
		label := ""
		if opts.Timing && from.ExitedAt != nil {
			label = fmt.Sprintf(" [label=\"%s\"]", from.ExitedAt.Sub(from.EnteredAt))
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", from.StateID, to.StateID, label)
	}
	if opts.Counts {
		fmt.Fprintf(&b, "  // %d states visited\n", len(history))
	}
	if truncated {
		b.WriteString("  // path truncated\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func visualizeHTML(run *workflow.WorkflowRun, history []workflow.HistoryEntry, opts VisualizeOptions, truncated bool) string {
	var b strings.Builder
	b.WriteString("<ol class=\"workflow-run-path\">\n")
	for _, h := range history {
		entry := h.StateID
		if opts.Timing && h.ExitedAt != nil {
			entry += fmt.Sprintf(" (%s)", h.ExitedAt.Sub(h.EnteredAt))
		}
		fmt.Fprintf(&b, "  <li>%s</li>\n", entry)
	}
	if truncated {
		b.WriteString("  <li>&hellip;</li>\n")
	}
	b.WriteString("</ol>\n")
	if opts.Counts {
		fmt.Fprintf(&b, "<p>%d states visited</p>\n", len(history))
	}
	return b.String()
}

type visualizeJSONDoc struct {
	RunID     string                   `json:"run_id"`
	Status    string                   `json:"status"`
	Path      []workflow.HistoryEntry  `json:"path"`
	Truncated bool                     `json:"truncated"`
	Counts    *int                     `json:"states_visited,omitempty"`
}

func visualizeJSON(run *workflow.WorkflowRun, history []workflow.HistoryEntry, opts VisualizeOptions, truncated bool) (string, error) {
	doc := visualizeJSONDoc{
		RunID:     run.ID,
		Status:    string(run.Status),
		Path:      history,
		Truncated: truncated,
	}
	if opts.Counts {
		n := len(history)
		doc.Counts = &n
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errs.Wrap(errs.KindIoFailure, run.ID, err)
	}
	return string(out), nil
}
