package prompts

import (
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/resolver"
)

// Library stores prompts keyed by name and owns their lifecycle (spec.md §3
// Ownership). It implements resolver.Target so a Resolver can populate it.
type Library struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
	cfg     *config.Config
}

// New creates an empty Library.
func New(cfg *config.Config) *Library {
	return &Library{prompts: make(map[string]*Prompt), cfg: cfg}
}

// Kind implements resolver.Target.
func (l *Library) Kind() resolver.Kind { return resolver.KindPrompt }

// RecognizedExt implements resolver.Target.
func (l *Library) RecognizedExt(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range recognizedExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// LoadFile implements resolver.Target: parses front matter + template body
// and stores the resulting Prompt, replacing any prior entry of the same
// name.
func (l *Library) LoadFile(source resolver.Source, relPath string, data []byte) (string, error) {
	name := resolver.NameFromPath(relPath, recognizedExts)
	p, err := parsePrompt(name, string(data))
	if err != nil {
		return "", err
	}
	p.Source = source
	p.SourcePath = relPath
	l.Add(p)
	return name, nil
}

// parsePrompt builds a Prompt from raw file content.
func parsePrompt(name, content string) (*Prompt, error) {
	raw, body := splitFrontMatter(content)

	p := &Prompt{Name: name, Template: body}

	if raw != "" {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, name, err)
		}
		p.Title = fm.Title
		p.Description = fm.Description
		p.Category = fm.Category
		p.Tags = fm.Tags
		p.Arguments = fm.Arguments
		p.Metadata = fm.Metadata
	}

	bodyTrimmed := strings.TrimLeft(body, "\n\r\t ")
	if strings.HasPrefix(bodyTrimmed, partialSentinel) {
		p.IsPartial = true
		p.Template = strings.TrimPrefix(bodyTrimmed, partialSentinel)
		p.Template = strings.TrimPrefix(p.Template, "\n")
	} else if raw == "" && looksLikePartial(name, body) {
		p.IsPartial = true
	}

	if p.IsPartial && p.Description == "" {
		p.Description = "partial template fragment"
	}

	return p, nil
}

// Add stores or replaces prompt by name.
func (l *Library) Add(p *Prompt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts[p.Name] = p
}

// Get fails NotFound if name is absent.
func (l *Library) Get(name string) (*Prompt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.prompts[name]
	if !ok {
		return nil, errs.NotFound(name)
	}
	return p, nil
}

// List returns every loaded prompt, sorted by name.
func (l *Library) List() []*Prompt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Prompt, 0, len(l.prompts))
	for _, p := range l.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Filter narrows a List by source, category, search substring, and argument
// presence, per spec.md §4.2.
type Filter struct {
	Sources      []resolver.Source
	Category     string
	Search       string
	HasArgument  string
	NoArguments  bool
}

// ListFiltered applies filter to the library's prompts.
func (l *Library) ListFiltered(filter Filter) []*Prompt {
	all := l.List()
	out := make([]*Prompt, 0, len(all))
	for _, p := range all {
		if len(filter.Sources) > 0 && !containsSource(filter.Sources, p.Source) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !matchesSearch(p, filter.Search) {
			continue
		}
		if filter.HasArgument != "" && !hasArgumentNamed(p, filter.HasArgument) {
			continue
		}
		if filter.NoArguments && len(p.Arguments) > 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Search performs a substring match over name, description, and content —
// the default backend behavior named in spec.md §4.2.
func (l *Library) Search(query string) []*Prompt {
	if query == "" {
		return l.List()
	}
	return l.ListFiltered(Filter{Search: query})
}

// AddDirectory loads every recognizable file under dir directly (outside the
// resolver's tiered precedence), returning the count loaded.
func (l *Library) AddDirectory(dir string) (int, error) {
	count := 0
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errs.Wrap(errs.KindIoFailure, dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			sub, err := l.AddDirectory(dir + "/" + e.Name())
			if err != nil {
				return count, err
			}
			count += sub
			continue
		}
		if !l.RecognizedExt(e.Name()) {
			continue
		}
		data, err := os.ReadFile(dir + "/" + e.Name())
		if err != nil {
			continue
		}
		if _, err := l.LoadFile(resolver.SourceDynamic, e.Name(), data); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

func containsSource(sources []resolver.Source, s resolver.Source) bool {
	for _, want := range sources {
		if want == s {
			return true
		}
	}
	return false
}

func matchesSearch(p *Prompt, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Template), q)
}

func hasArgumentNamed(p *Prompt, name string) bool {
	for _, a := range p.Arguments {
		if a.Name == name {
			return true
		}
	}
	return false
}
