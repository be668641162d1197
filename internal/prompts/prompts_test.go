package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/errs"
	"github.com/wballard/swissarmyhammer/internal/resolver"
)

func newTestLibrary() *Library {
	return New(config.DefaultConfig())
}

func TestParsePrompt_FrontMatterAndArguments(t *testing.T) {
	content := `---
title: say-hello
description: Greets a person.
category: examples
arguments:
  - name: name
    required: false
    default: World
---
Hello, {{name}}!
`
	p, err := parsePrompt("say-hello", content)
	require.NoError(t, err)
	assert.Equal(t, "say-hello", p.Title)
	assert.Equal(t, "examples", p.Category)
	require.Len(t, p.Arguments, 1)
	assert.Equal(t, "name", p.Arguments[0].Name)
	assert.False(t, p.IsPartial)
}

func TestParsePrompt_PartialSentinel(t *testing.T) {
	p, err := parsePrompt("signature", "{% partial %}\n-- sent by swissarmyhammer\n")
	require.NoError(t, err)
	assert.True(t, p.IsPartial)
	assert.Equal(t, "-- sent by swissarmyhammer\n", p.Template)
	assert.Equal(t, "partial template fragment", p.Description)
}

func TestParsePrompt_HeuristicPartial(t *testing.T) {
	p, err := parsePrompt("_helper", "just a short fragment")
	require.NoError(t, err)
	assert.True(t, p.IsPartial)
}

func TestLibrary_GetMissing(t *testing.T) {
	lib := newTestLibrary()
	_, err := lib.Get("nope")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestLibrary_RenderMissingRequiredArgument(t *testing.T) {
	lib := newTestLibrary()
	lib.Add(&Prompt{
		Name:      "greet",
		Template:  "Hi {{name}}",
		Arguments: []ArgumentSpec{{Name: "name", Required: true}},
	})

	_, err := lib.Render("greet", nil, false)
	require.Error(t, err)
	assert.Equal(t, errs.KindMissingArgument, errs.KindOf(err))
}

func TestLibrary_RenderAppliesDefault(t *testing.T) {
	lib := newTestLibrary()
	lib.Add(&Prompt{
		Name:      "greet",
		Template:  "Hi {{name}}",
		Arguments: []ArgumentSpec{{Name: "name", Default: "World"}},
	})

	out, err := lib.Render("greet", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Hi World", out)
}

func TestLibrary_RenderWithPartial(t *testing.T) {
	lib := newTestLibrary()
	lib.Add(&Prompt{Name: "signature", Template: "-- bye", IsPartial: true})
	lib.Add(&Prompt{Name: "greet", Template: `Hi {{name}}! {% render "signature" %}`})

	out, err := lib.Render("greet", map[string]string{"name": "Ada"}, false)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada! -- bye", out)
}

func TestLibrary_RenderDetectsCycle(t *testing.T) {
	lib := newTestLibrary()
	lib.Add(&Prompt{Name: "a", Template: `{% render "b" %}`})
	lib.Add(&Prompt{Name: "b", Template: `{% render "a" %}`})

	_, err := lib.Render("a", nil, false)
	require.Error(t, err)
	assert.Equal(t, errs.KindPartialCycle, errs.KindOf(err))
}

func TestLibrary_LoadFileAndFilter(t *testing.T) {
	lib := newTestLibrary()
	name, err := lib.LoadFile(resolver.SourceUser, "ops/deploy.md", []byte(`---
description: Deploys a service.
category: ops
---
Deploying {{service}}`))
	require.NoError(t, err)
	assert.Equal(t, "ops/deploy", name)

	got := lib.ListFiltered(Filter{Category: "ops"})
	require.Len(t, got, 1)
	assert.Equal(t, "ops/deploy", got[0].Name)

	none := lib.ListFiltered(Filter{Category: "missing"})
	assert.Empty(t, none)
}

func TestLibrary_Search(t *testing.T) {
	lib := newTestLibrary()
	lib.Add(&Prompt{Name: "deploy-service", Description: "Runs a deployment"})
	lib.Add(&Prompt{Name: "unrelated", Description: "Something else"})

	found := lib.Search("deploy")
	require.Len(t, found, 1)
	assert.Equal(t, "deploy-service", found[0].Name)
}
