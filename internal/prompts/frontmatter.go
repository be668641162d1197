package prompts

import "strings"

// splitFrontMatter separates a leading "---\n...\n---\n" YAML block from the
// template body. If no front-matter delimiter opens the file, the entire
// content is returned as body with an empty raw front-matter string.
func splitFrontMatter(content string) (raw string, body string) {
	const delim = "---"

	trimmedLeading := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmedLeading, delim) {
		return "", content
	}

	rest := strings.TrimPrefix(trimmedLeading, delim)
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
