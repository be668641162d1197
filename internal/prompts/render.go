package prompts

import (
	"os"
	"regexp"
	"strings"

	"github.com/osteele/liquid"

	"github.com/wballard/swissarmyhammer/internal/errs"
)

// renderTagPattern matches {% render "name" %} or {% render 'name' %},
// capturing the quoted prompt name. osteele/liquid has no notion of our
// library's cross-template lookup, so partial inclusion is resolved as a
// source-level expansion pass before the template reaches the liquid engine.
var renderTagPattern = regexp.MustCompile(`\{%-?\s*render\s+["']([^"']+)["']\s*-?%\}`)

// maxRenderDepth caps recursive partial inclusion as a hard backstop beneath
// config.Prompts.MaxIncludeDepth, which applies when set to a lower value.
const maxRenderDepth = 64

// Render implements the rendering contract of spec.md §4.2 steps 1-6.
func (l *Library) Render(name string, args map[string]string, envEnabled bool) (string, error) {
	p, err := l.Get(name)
	if err != nil {
		return "", err
	}

	bound, err := l.bindArguments(p, args, envEnabled)
	if err != nil {
		return "", err
	}

	stack := map[string]bool{name: true}
	expanded, err := l.expandPartials(p.Template, bound, stack, 0)
	if err != nil {
		return "", err
	}

	return renderLiquid(name, expanded, bound)
}

// bindArguments applies steps 1-3 of the rendering contract.
func (l *Library) bindArguments(p *Prompt, args map[string]string, envEnabled bool) (map[string]string, error) {
	bound := make(map[string]string, len(args))
	for k, v := range args {
		bound[k] = v
	}

	if !p.IsPartial {
		for _, spec := range p.Arguments {
			if spec.Required {
				if _, ok := bound[spec.Name]; !ok {
					return nil, errs.MissingArgument(spec.Name)
				}
			}
		}
	}

	for _, spec := range p.Arguments {
		if spec.Default != "" {
			if _, ok := bound[spec.Name]; !ok {
				bound[spec.Name] = spec.Default
			}
		}
	}

	if envEnabled {
		for _, kv := range os.Environ() {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				continue
			}
			if _, ok := bound[parts[0]]; !ok {
				bound[parts[0]] = parts[1]
			}
		}
	}

	return bound, nil
}

// expandPartials resolves every {% render "name" %} tag in template,
// substituting the fully rendered referenced prompt in place. The include
// stack prevents cycles; depth guards against pathological chains even
// without a cycle.
func (l *Library) expandPartials(template string, args map[string]string, stack map[string]bool, depth int) (string, error) {
	limit := maxRenderDepth
	if l.cfg != nil && l.cfg.Prompts.MaxIncludeDepth > 0 && l.cfg.Prompts.MaxIncludeDepth < limit {
		limit = l.cfg.Prompts.MaxIncludeDepth
	}
	if depth > limit {
		return "", errs.LimitExceeded("render_depth", "exceeded maximum partial include depth")
	}

	var outerErr error
	result := renderTagPattern.ReplaceAllStringFunc(template, func(match string) string {
		if outerErr != nil {
			return match
		}
		sub := renderTagPattern.FindStringSubmatch(match)
		name := sub[1]

		if stack[name] {
			outerErr = errs.PartialCycle(name)
			return ""
		}

		partial, err := l.Get(name)
		if err != nil {
			outerErr = err
			return ""
		}

		childStack := make(map[string]bool, len(stack)+1)
		for k := range stack {
			childStack[k] = true
		}
		childStack[name] = true

		childArgs, err := l.bindArguments(partial, args, false)
		if err != nil {
			outerErr = err
			return ""
		}

		expanded, err := l.expandPartials(partial.Template, childArgs, childStack, depth+1)
		if err != nil {
			outerErr = err
			return ""
		}

		rendered, err := renderLiquid(name, expanded, childArgs)
		if err != nil {
			outerErr = err
			return ""
		}
		return rendered
	})

	if outerErr != nil {
		return "", outerErr
	}
	return result, nil
}

// renderLiquid parses and renders a single expanded template body against
// bound variables, using osteele/liquid for the {{ }}/{% if %}/{% for %}
// core. Unknown variable references render as empty strings (the liquid
// engine's default), matching the "soft error" rule of step 5.
func renderLiquid(name, template string, bound map[string]string) (string, error) {
	engine := liquid.NewEngine()

	tpl, err := engine.ParseString(template)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, name, err)
	}

	bindings := make(map[string]interface{}, len(bound))
	for k, v := range bound {
		bindings[k] = v
	}

	out, err := tpl.Render(bindings)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, name, err)
	}
	return string(out), nil
}
