// Package prompts implements the prompt library (spec.md component C2):
// template storage, front-matter metadata, and Liquid-style rendering with
// recursive partial inclusion.
package prompts

import (
	"strings"

	"github.com/wballard/swissarmyhammer/internal/resolver"
)

// ArgumentSpec describes one named template argument.
type ArgumentSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     string `yaml:"default,omitempty"`
	TypeHint    string `yaml:"type_hint,omitempty"`
}

// Prompt is a named template with metadata and an ordered argument list.
type Prompt struct {
	Name        string
	Source      resolver.Source
	SourcePath  string
	Title       string
	Description string
	Category    string
	Tags        []string
	Arguments   []ArgumentSpec
	Template    string
	IsPartial   bool
	Metadata    map[string]string
}

// frontMatter is the YAML document expected above a prompt's template body.
type frontMatter struct {
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Category    string            `yaml:"category"`
	Tags        []string          `yaml:"tags"`
	Arguments   []ArgumentSpec    `yaml:"arguments"`
	Metadata    map[string]string `yaml:"metadata"`
}

// recognizedExts lists every extension (including compound forms) the
// resolver hands to this package, per spec.md §3.
var recognizedExts = []string{".md.liquid", ".markdown.liquid", ".liquid", ".md", ".markdown"}

// partialSentinel is the leading tag that unambiguously marks a partial.
const partialSentinel = "{% partial %}"

// looksLikePartial applies spec.md §3's partial heuristic to a prompt that
// has no front matter: no markdown headings, short body, a filename prefixed
// with "_", or a filename containing the word "partial".
func looksLikePartial(name, body string) bool {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if strings.HasPrefix(base, "_") || strings.Contains(strings.ToLower(base), "partial") {
		return true
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return false
	}
	hasHeading := false
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			hasHeading = true
			break
		}
	}
	return !hasHeading && len(trimmed) < 200
}
