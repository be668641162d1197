package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wballard/swissarmyhammer/internal/config"
	"github.com/wballard/swissarmyhammer/internal/prompts"
	"github.com/wballard/swissarmyhammer/internal/resolver"
	"github.com/wballard/swissarmyhammer/internal/workflow"
)

func newLibWithPrompt(t *testing.T, name, content string) *prompts.Library {
	t.Helper()
	cfg := config.DefaultConfig()
	lib := prompts.New(cfg)
	_, err := lib.LoadFile(resolver.SourceLocal, name+".md", []byte(content))
	require.NoError(t, err)
	return lib
}

func newStoreWithWorkflow(t *testing.T, name, content string) *workflow.Store {
	t.Helper()
	cfg := config.DefaultConfig()
	store := workflow.New(cfg)
	_, err := store.LoadFile(resolver.SourceLocal, name+".mermaid", []byte(content))
	require.NoError(t, err)
	return store
}

func TestValidatePrompt_MissingTitleAndDescriptionWarns(t *testing.T) {
	lib := newLibWithPrompt(t, "bare", "---\ncategory: misc\n---\nHello {{name}}")
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200})
	result := v.ValidateAll(lib, workflow.New(config.DefaultConfig()))

	var messages []string
	for _, i := range result.Issues {
		messages = append(messages, i.Message)
	}
	assert.Contains(t, messages, "prompt has no title")
	assert.Contains(t, messages, "prompt has no description")
}

func TestValidatePrompt_UndeclaredVariableWarns(t *testing.T) {
	lib := newLibWithPrompt(t, "greet", `---
title: Greet
description: says hi
---
Hi {{name}}, today is {{day}}.
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200})
	result := v.ValidateAll(lib, workflow.New(config.DefaultConfig()))

	found := false
	for _, i := range result.Issues {
		if i.Message == `template references undeclared variable "name"` ||
			i.Message == `template references undeclared variable "day"` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidatePrompt_MissingPartialIsError(t *testing.T) {
	lib := newLibWithPrompt(t, "greet", `---
title: Greet
description: says hi
---
Hi! {% render "sig" %}
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200})
	result := v.ValidateAll(lib, workflow.New(config.DefaultConfig()))

	require.NotEmpty(t, result.Errors)
	found := false
	for _, i := range result.Issues {
		if i.Level == LevelError && i.Message == `referenced partial "sig" does not exist` {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateWorkflow_NoTerminalStateIsError(t *testing.T) {
	store := newStoreWithWorkflow(t, "loopy", `---
name: loopy
description: never terminates
---
stateDiagram-v2
  [*] --> a
  a --> b
  b --> a
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200})
	result := v.ValidateAll(prompts.New(config.DefaultConfig()), store)

	assert.Greater(t, result.Errors, 0)
	var sawNoTerminal bool
	for _, i := range result.Issues {
		if i.Message == "workflow has no terminal state" {
			sawNoTerminal = true
		}
	}
	assert.True(t, sawNoTerminal)
}

func TestValidateWorkflow_UnreachableStateWarns(t *testing.T) {
	store := newStoreWithWorkflow(t, "orphan", `---
name: orphan
description: has an unreachable state
---
stateDiagram-v2
  [*] --> a
  a --> done
  done --> [*]
  orphaned --> done
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200})
	result := v.ValidateAll(prompts.New(config.DefaultConfig()), store)

	var sawUnreachable bool
	for _, i := range result.Issues {
		if i.Message == `state "orphaned" is not reachable from the initial state` {
			sawUnreachable = true
			assert.Equal(t, LevelWarning, i.Level)
		}
	}
	assert.True(t, sawUnreachable)
}

func TestValidateWorkflow_NoReachableTerminalStateIsError(t *testing.T) {
	store := newStoreWithWorkflow(t, "stuck", `---
name: stuck
description: terminal state exists but is never reached
---
stateDiagram-v2
  [*] --> a
  a --> a
  done --> [*]
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 200, UnreachableIsError: false})
	result := v.ValidateAll(prompts.New(config.DefaultConfig()), store)

	var sawError bool
	for _, i := range result.Issues {
		if i.Message == "no terminal state is reachable from the initial state" {
			sawError = true
			assert.Equal(t, LevelError, i.Level)
		}
	}
	assert.True(t, sawError, "expected a hard error even though UnreachableIsError is false")
}

func TestValidateWorkflow_ComplexityOverMaxWarns(t *testing.T) {
	store := newStoreWithWorkflow(t, "simple", `---
name: simple
description: trivially small workflow
---
stateDiagram-v2
  [*] --> a
  a --> done
  done --> [*]
`)
	v := New(&config.ValidatorConfig{MaxWorkflowComplexity: 1})
	result := v.ValidateAll(prompts.New(config.DefaultConfig()), store)

	var sawComplexity bool
	for _, i := range result.Issues {
		if i.Message == "workflow complexity (states + transitions) exceeds configured maximum" {
			sawComplexity = true
		}
	}
	assert.True(t, sawComplexity)
}

func TestValidationResult_ExitCode(t *testing.T) {
	clean := ValidationResult{}
	assert.Equal(t, 0, clean.ExitCode())

	warned := ValidationResult{}
	warned.add(Issue{Level: LevelWarning, Message: "x"})
	assert.Equal(t, 1, warned.ExitCode())

	errored := ValidationResult{}
	errored.add(Issue{Level: LevelError, Message: "x"})
	assert.Equal(t, 2, errored.ExitCode())
}
